// Package anthropic は Claude API による回答生成を提供する
package anthropic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/merrymeeple/meeple-rag/internal/core/retrieve"
)

// DefaultModel は回答生成に使うデフォルトモデル
const DefaultModel = "claude-sonnet-4-20250514"

const maxAnswerTokens = 1200

// setupKeywords を含む質問はセットアップ手順の詳細回答に切り替える
var setupKeywords = []string{
	"setup", "set up", "start", "beginning", "prepare", "how to play", "getting started",
}

const setupInstruction = `This is a SETUP question. Provide a complete, step-by-step walkthrough of the setup process.
- Use numbered steps
- Be thorough and detailed
- Include all components that need to be placed
- Mention player-specific setup (what each player gets/does)
- Cover any special setup for different player counts if mentioned`

const directInstruction = `Provide a clear, direct answer to the specific question asked.`

// Generator は retrieve.AnswerGenerator を実装する Claude クライアント
type Generator struct {
	client *anthropic.Client
	model  string
}

type generatorOptions struct {
	model string
}

// GeneratorOption は Generator のオプション設定
type GeneratorOption func(*generatorOptions)

// WithModel はモデル名を上書きする
func WithModel(model string) GeneratorOption {
	return func(o *generatorOptions) {
		o.model = model
	}
}

// NewGenerator は新しい Generator を作成します
func NewGenerator(apiKey string, opts ...GeneratorOption) *Generator {
	options := generatorOptions{
		model: DefaultModel,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Generator{
		client: anthropic.NewClient(apiKey),
		model:  options.model,
	}
}

var _ retrieve.AnswerGenerator = (*Generator)(nil)

// GenerateAnswer は検索済みの抜粋を根拠に回答を生成する
// 回答はページ番号の引用を含むよう指示される
func (g *Generator) GenerateAnswer(ctx context.Context, req retrieve.AnswerRequest) (*retrieve.Answer, error) {
	prompt := buildPrompt(req)

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		MaxTokens: maxAnswerTokens,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	var text string
	for _, content := range resp.Content {
		if content.Type == anthropic.MessagesContentTypeText && content.Text != nil {
			text += *content.Text
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty answer from model")
	}

	return &retrieve.Answer{
		Text:        text,
		SourcePages: collectPages(req.Chunks),
	}, nil
}

func buildPrompt(req retrieve.AnswerRequest) string {
	instruction := directInstruction
	if isSetupQuestion(req.Question) {
		instruction = setupInstruction
	}

	contextParts := make([]string, 0, len(req.Chunks))
	for _, chunk := range req.Chunks {
		contextParts = append(contextParts, fmt.Sprintf("%s\n%s", pageLabel(chunk.Pages), chunk.Text))
	}
	excerpts := strings.Join(contextParts, "\n\n---\n\n")

	return fmt.Sprintf(`You are a helpful board game rules assistant at The Merry Meeple cafe. Answer the customer's question based ONLY on the rulebook excerpts provided below.

%s

Rules for answering:
- Be friendly and conversational
- Always cite page numbers in the format: (p. X) or (pp. X-Y)
- If the answer isn't in the excerpts, say "I don't see that specific information in the rulebook. Let me check with staff for you."
- If the question is unclear, ask ONE clarifying question
- Never make up rules that aren't in the rulebook

RULEBOOK EXCERPTS FOR %s:
%s

CUSTOMER QUESTION: %s

YOUR ANSWER:`, instruction, strings.ToUpper(req.GameTitle), excerpts, req.Question)
}

func isSetupQuestion(question string) bool {
	lowered := strings.ToLower(question)
	for _, keyword := range setupKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// pageLabel はチャンクのページ範囲を抜粋ヘッダーに整形する
func pageLabel(pages []int) string {
	if len(pages) == 0 {
		return "[Page ?]"
	}
	if len(pages) == 1 {
		return fmt.Sprintf("[Page %d]", pages[0])
	}
	return fmt.Sprintf("[Pages %d-%d]", pages[0], pages[len(pages)-1])
}

func collectPages(chunks []retrieve.RetrievedChunk) []int {
	seen := make(map[int]bool)
	pages := make([]int, 0)
	for _, chunk := range chunks {
		for _, page := range chunk.Pages {
			if !seen[page] {
				seen[page] = true
				pages = append(pages, page)
			}
		}
	}
	sort.Ints(pages)
	return pages
}
