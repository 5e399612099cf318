package ingest

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

const (
	// DefaultTargetTokens は1チャンクの目標トークン数
	DefaultTargetTokens = 500
	// DefaultOverlapTokens は隣接チャンク間のオーバーラップトークン数
	DefaultOverlapTokens = 50
	// DefaultFlexRatio は文境界まで窓を伸ばせる許容幅（目標トークン数比）
	DefaultFlexRatio = 0.10
)

// Page は抽出器が返す1ページ分のテキスト
// Number は1始まりで単調増加、Text は空でもよいが nil にはならない
type Page struct {
	Number int
	Text   string
}

// ChunkCandidate は埋め込み前のチャンク候補
type ChunkCandidate struct {
	Ordinal    int
	Text       string
	TokenCount int
	// Pages はこのチャンクが重なるページ番号（非空・昇順）
	Pages []int
}

// Chunker はページ付きテキストをオーバーラップ付きの
// トークン境界チャンクに分割する
type Chunker struct {
	encoder *tiktoken.Tiktoken

	targetTokens  int
	overlapTokens int
	flexRatio     float64
}

type chunkerOptions struct {
	targetTokens  int
	overlapTokens int
	flexRatio     float64
}

// ChunkerOption は Chunker のオプション設定
type ChunkerOption func(*chunkerOptions)

// WithTargetTokens は目標トークン数を上書きする
func WithTargetTokens(n int) ChunkerOption {
	return func(o *chunkerOptions) {
		o.targetTokens = n
	}
}

// WithOverlapTokens はオーバーラップトークン数を上書きする
func WithOverlapTokens(n int) ChunkerOption {
	return func(o *chunkerOptions) {
		o.overlapTokens = n
	}
}

// WithFlexRatio は文境界探索の許容幅を上書きする
func WithFlexRatio(r float64) ChunkerOption {
	return func(o *chunkerOptions) {
		o.flexRatio = r
	}
}

// NewChunker は新しい Chunker を作成する
// オーバーラップが目標トークン数以上の場合は窓が前進しないためエラー
func NewChunker(opts ...ChunkerOption) (*Chunker, error) {
	options := chunkerOptions{
		targetTokens:  DefaultTargetTokens,
		overlapTokens: DefaultOverlapTokens,
		flexRatio:     DefaultFlexRatio,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.targetTokens <= 0 {
		return nil, fmt.Errorf("target tokens must be positive: %d", options.targetTokens)
	}
	if options.overlapTokens < 0 || options.overlapTokens >= options.targetTokens {
		return nil, fmt.Errorf("overlap (%d) must be smaller than target (%d)", options.overlapTokens, options.targetTokens)
	}

	// cl100k_baseエンコーダを使用（text-embedding-3-smallと互換）
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoder: %w", err)
	}

	return &Chunker{
		encoder:       encoder,
		targetTokens:  options.targetTokens,
		overlapTokens: options.overlapTokens,
		flexRatio:     options.flexRatio,
	}, nil
}

// pageSpan はトークン列上でのページの範囲
type pageSpan struct {
	page  int
	start int // 含む
	end   int // 含まない
}

// Chunk はページ列を1本のトークン列に連結し、
// オーバーラップ付きスライディングウィンドウでチャンク候補を生成する
// 空ページはトークンを供出しないがページ数には数えられ、連続性を壊さない
func (c *Chunker) Chunk(pages []Page) ([]ChunkCandidate, error) {
	if len(pages) == 0 {
		return nil, library.ErrEmptyDocument
	}

	var tokens []int
	var spans []pageSpan
	for _, p := range pages {
		pageTokens := c.encoder.Encode(p.Text, nil, nil)
		if len(pageTokens) == 0 {
			// 抽出失敗やスキャン画像ページ。黙ってスキップ
			continue
		}
		spans = append(spans, pageSpan{
			page:  p.Number,
			start: len(tokens),
			end:   len(tokens) + len(pageTokens),
		})
		tokens = append(tokens, pageTokens...)
	}

	if len(tokens) == 0 {
		return nil, library.ErrEmptyDocument
	}

	flexTokens := int(float64(c.targetTokens) * c.flexRatio)

	var candidates []ChunkCandidate
	start := 0
	for start < len(tokens) {
		end := start + c.targetTokens
		if end >= len(tokens) {
			end = len(tokens)
		} else {
			end = c.extendToSentence(tokens, end, flexTokens)
		}

		candidates = append(candidates, ChunkCandidate{
			Ordinal:    len(candidates),
			Text:       c.encoder.Decode(tokens[start:end]),
			TokenCount: end - start,
			Pages:      pagesInWindow(spans, start, end),
		})

		if end == len(tokens) {
			break
		}
		start = end - c.overlapTokens
	}

	return candidates, nil
}

// CountTokens はテキストのトークン数をカウントする
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoder.Encode(text, nil, nil))
}

// extendToSentence は窓の終端を許容幅の範囲内で
// 次の文終端トークンまで伸ばす。見つからなければ元の終端を返す
func (c *Chunker) extendToSentence(tokens []int, end, flexTokens int) int {
	limit := end + flexTokens
	if limit > len(tokens) {
		limit = len(tokens)
	}

	for j := end; j <= limit; j++ {
		if endsSentence(c.encoder.Decode(tokens[j-1 : j])) {
			return j
		}
	}
	return end
}

// sentenceTerminators は文終端とみなす文字
const sentenceTerminators = ".!?。！？"

func endsSentence(tok string) bool {
	trimmed := strings.TrimRight(tok, " \t\n\"')]）」』")
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	return strings.ContainsRune(sentenceTerminators, runes[len(runes)-1])
}

// pagesInWindow は窓 [start, end) と交差するページ番号を昇順で返す
func pagesInWindow(spans []pageSpan, start, end int) []int {
	var pages []int
	for _, s := range spans {
		if s.start < end && s.end > start {
			pages = append(pages, s.page)
		}
	}
	return pages
}
