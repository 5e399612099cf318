package ingest

import "context"

// PageExtractor は生ファイルからページ単位のテキストを取り出す外部協調者
// ページ番号は1始まりで単調増加、テキストは空でもよいが nil にはならない
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]Page, error)
}

// Embedder はテキストをベクトルに変換する外部サービスのアダプタ
type Embedder interface {
	// Embed は単一テキストの Embedding を生成する
	Embed(ctx context.Context, text string) ([]float32, error)
	// BatchEmbed は順序と件数を保ったままバッチで Embedding を生成する
	// プロバイダの上限を超える入力は内部で分割される
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
	// ModelName はモデル名を返す
	ModelName() string
	// Dimension はベクトル次元数を返す
	Dimension() int
	// MaxBatchSize は1リクエストあたりの最大テキスト数を返す
	MaxBatchSize() int
}
