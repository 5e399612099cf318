package library

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDocument は抽出可能なテキストが1文字もない場合のエラー
	ErrEmptyDocument = errors.New("document has no extractable text")

	// ErrNoContentAvailable はゲームは存在するがチャンクが0件の場合のエラー
	// 「該当箇所なし」とは区別して呼び出し側に伝える
	ErrNoContentAvailable = errors.New("no content available for game")

	// ErrGameNotFound は指定タイトルのゲームが存在しない場合のエラー
	ErrGameNotFound = errors.New("game not found")

	// ErrDimensionalityMismatch はライブラリの埋め込み次元と
	// 稼働中プロバイダの次元が一致しない場合のエラー。起動を止める
	ErrDimensionalityMismatch = errors.New("embedding dimensionality mismatch")

	// ErrRetrievalTimeout は検索呼び出しのタイムアウト
	// この層ではリトライしない
	ErrRetrievalTimeout = errors.New("retrieval timed out")
)

// EmbeddingServiceError は埋め込みサービス呼び出しの失敗を表す
// Batch は失敗したバッチの添字（0始まり）。成功済みバッチの再実行を避けるために持つ
type EmbeddingServiceError struct {
	Batch int
	Err   error
}

func (e *EmbeddingServiceError) Error() string {
	return fmt.Sprintf("embedding service failed at batch %d: %v", e.Batch, e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error {
	return e.Err
}
