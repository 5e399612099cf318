package library

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType は資料の種別を表す閉じたタグ
type DocumentType string

const (
	DocumentTypeRulebook   DocumentType = "rulebook"
	DocumentTypeFAQ        DocumentType = "faq"
	DocumentTypeErrata     DocumentType = "errata"
	DocumentTypeSupplement DocumentType = "supplement"
)

// Game はライブラリ上の1ゲームを表す
// タイトルは大文字小文字を無視して一意
type Game struct {
	ID        uuid.UUID
	Title     string
	CreatedAt time.Time
}

// SourceDocument は取り込み済みの1ファイルを表す
type SourceDocument struct {
	ID          uuid.UUID
	GameID      uuid.UUID
	FileName    string
	DocType     DocumentType
	PageCount   int
	Fingerprint string
	IngestSeq   int64
	IngestedAt  time.Time
}

// Chunk は検索単位となるテキスト断片を表す
// 取り込み時に一度だけ作成され、以後不変
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	Ordinal    int
	Pages      []int // 非空・昇順。複数ページにまたがる場合あり
	Content    string
	TokenCount int
	Embedding  []float32
}

// ScoredChunk は類似度検索の結果1件を表す
type ScoredChunk struct {
	Chunk   *Chunk
	DocType DocumentType
	Score   float64
}

// GameStats はライブラリの統計表示用の集計結果
type GameStats struct {
	ID           uuid.UUID
	Title        string
	PageCount    int
	ChunkCount   int
	ChunksByType map[DocumentType]int
	CreatedAt    time.Time
}

// ChunkInput は upsert に渡すチャンク1件の入力形
// Embedding は必ず全件同一次元であること
type ChunkInput struct {
	Ordinal    int
	Pages      []int
	Content    string
	TokenCount int
	Embedding  []float32
}

// UpsertDocumentParams は upsert 操作の入力
type UpsertDocumentParams struct {
	GameTitle   string // 表示形（タイトルケース）
	FileName    string
	DocType     DocumentType
	PageCount   int
	Fingerprint string
	Chunks      []ChunkInput
}

// UpsertResult は upsert 操作の結果
type UpsertResult struct {
	CreatedGame      bool      // 新規ゲームが作成された場合 true
	AlreadyProcessed bool      // 同一フィンガープリントが処理済みで no-op だった場合 true
	GameID           uuid.UUID
	DocumentID       uuid.UUID
}

// Meta はライブラリ全体の埋め込み設定を表す
// 次元の混在は致命的な設定エラーとして起動時に検出する
type Meta struct {
	EmbeddingModel     string
	EmbeddingDimension int
}
