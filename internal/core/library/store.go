package library

import (
	"context"

	"github.com/google/uuid"
	"github.com/samber/mo"
)

// Store はゲームライブラリの全データアクセスを統合するインターフェース
// テスト時のモック用に消費者側で定義する。書き込みは UpsertDocument のみ
type Store interface {
	// UpsertDocument はゲームの解決/作成、文書とチャンクの永続化を
	// 1トランザクションで行う。同一フィンガープリントは no-op
	UpsertDocument(ctx context.Context, params UpsertDocumentParams) (*UpsertResult, error)

	// GetGameByTitle はタイトル（大文字小文字無視）でゲームを取得する
	GetGameByTitle(ctx context.Context, title string) (mo.Option[*Game], error)

	// ListGames は全ゲームの統計をタイトル順で返す
	ListGames(ctx context.Context) ([]*GameStats, error)

	// ListDocumentsByGame はゲーム配下の文書を取り込み順で返す
	ListDocumentsByGame(ctx context.Context, gameID uuid.UUID) ([]*SourceDocument, error)

	// DeleteGame はゲームと配下の文書・チャンクを全て削除する
	DeleteGame(ctx context.Context, title string) error

	// HasFingerprint は同一ゲーム配下に同じフィンガープリントの
	// 文書が既に存在するかを返す
	HasFingerprint(ctx context.Context, gameTitle string, fingerprint string) (bool, error)

	// CountChunks はゲーム配下のチャンク総数を返す
	CountChunks(ctx context.Context, gameID uuid.UUID) (int, error)

	// SimilaritySearch は指定ゲームのチャンクからコサイン類似度上位k件を返す
	// 同点は文書の取り込み順、次いでチャンク順で決定的に並ぶ
	SimilaritySearch(ctx context.Context, gameTitle string, queryVector []float32, k int) ([]*ScoredChunk, error)

	// GetMeta はライブラリの埋め込み設定を返す（未設定なら None）
	GetMeta(ctx context.Context) (mo.Option[*Meta], error)

	// InitMeta はライブラリの埋め込み設定を初期化する
	// 既に設定済みの場合は何もしない
	InitMeta(ctx context.Context, meta Meta) error
}
