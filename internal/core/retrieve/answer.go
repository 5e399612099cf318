package retrieve

import "context"

// AnswerRequest は回答生成サービスへ渡すペイロード
// このコアの仕事は Result からこの形を組み立てるところまで
type AnswerRequest struct {
	GameTitle string
	Question  string
	Chunks    []RetrievedChunk
	// SourcesUsed は引用表示（「ルールブック + FAQ より」）に使う
	SourcesUsed []string
}

// Answer は生成された回答
type Answer struct {
	Text string
	// SourcePages はコンテキストに使われたページ（重複なし・昇順）
	SourcePages []int
}

// AnswerGenerator は検索結果から回答テキストを生成する外部サービス
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, req AnswerRequest) (*Answer, error)
}

// NewAnswerRequest は検索結果から回答生成用のペイロードを組み立てる
func NewAnswerRequest(question string, result *Result) AnswerRequest {
	sources := make([]string, len(result.SourcesUsed))
	for i, s := range result.SourcesUsed {
		sources[i] = string(s)
	}
	return AnswerRequest{
		GameTitle:   result.GameTitle,
		Question:    question,
		Chunks:      result.Chunks,
		SourcesUsed: sources,
	}
}
