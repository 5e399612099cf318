package retrieve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

const (
	// DefaultTopK は類似度検索で返すチャンク数のデフォルト
	DefaultTopK = 5
	// DefaultRelevanceFloor はこれ未満のスコアを「該当なし」とみなす閾値
	DefaultRelevanceFloor = 0.30
)

// Embedder は質問テキストのEmbedding生成インターフェース
type Embedder interface {
	// Embed は単一テキストのEmbeddingを生成する
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrievedChunk は検索結果の1チャンク
type RetrievedChunk struct {
	Text    string
	Pages   []int
	DocType library.DocumentType
	Score   float64
}

// Result は検索結果全体
// Chunks が空で BelowFloor が true の場合、ゲーム自体には内容があるが
// この質問に該当する箇所が見つからなかったことを表す
type Result struct {
	GameTitle   string
	Chunks      []RetrievedChunk
	SourcesUsed []library.DocumentType
	BelowFloor  bool
}

// Params は検索パラメータ
type Params struct {
	GameTitle string
	Question  string
	// TopK は0以下ならサービスのデフォルトが使われる
	TopK int
}

// Service は検索のビジネスロジックを提供する
type Service struct {
	store          library.Store
	embedder       Embedder
	topK           int
	relevanceFloor float64
	logger         *slog.Logger
}

type serviceOptions struct {
	topK           int
	relevanceFloor float64
	logger         *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithTopK はデフォルトの取得件数を上書きする
func WithTopK(k int) ServiceOption {
	return func(o *serviceOptions) {
		o.topK = k
	}
}

// WithRelevanceFloor は関連度の下限を上書きする
func WithRelevanceFloor(floor float64) ServiceOption {
	return func(o *serviceOptions) {
		o.relevanceFloor = floor
	}
}

// WithRetrieveLogger は Service にロガーを設定する
func WithRetrieveLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しい検索 Service を作成する
func NewService(store library.Store, embedder Embedder, opts ...ServiceOption) *Service {
	options := serviceOptions{
		topK:           DefaultTopK,
		relevanceFloor: DefaultRelevanceFloor,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		store:          store,
		embedder:       embedder,
		topK:           options.topK,
		relevanceFloor: options.relevanceFloor,
		logger:         options.logger,
	}
}

// Retrieve は質問を埋め込み、指定ゲームに限定した類似度検索を行い、
// 引用情報付きの結果を組み立てる
// チャンクが0件のゲームは ErrNoContentAvailable（データ不備）、
// 閾値未満しか見つからない場合は空の Chunks（ルールブック未記載）として区別する
func (s *Service) Retrieve(ctx context.Context, params Params) (*Result, error) {
	if params.GameTitle == "" {
		return nil, fmt.Errorf("game title is required")
	}
	if params.Question == "" {
		return nil, fmt.Errorf("question is required")
	}

	gameOpt, err := s.store.GetGameByTitle(ctx, params.GameTitle)
	if err != nil {
		return nil, wrapTimeout(fmt.Errorf("failed to resolve game: %w", err))
	}
	if gameOpt.IsAbsent() {
		return nil, fmt.Errorf("%w: %s", library.ErrGameNotFound, params.GameTitle)
	}
	game := gameOpt.MustGet()

	count, err := s.store.CountChunks(ctx, game.ID)
	if err != nil {
		return nil, wrapTimeout(fmt.Errorf("failed to count chunks: %w", err))
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: %s", library.ErrNoContentAvailable, game.Title)
	}

	queryVector, err := s.embedder.Embed(ctx, params.Question)
	if err != nil {
		return nil, wrapTimeout(fmt.Errorf("failed to embed question: %w", err))
	}

	k := params.TopK
	if k <= 0 {
		k = s.topK
	}

	scored, err := s.store.SimilaritySearch(ctx, game.Title, queryVector, k)
	if err != nil {
		return nil, wrapTimeout(fmt.Errorf("similarity search failed: %w", err))
	}

	result := &Result{GameTitle: game.Title}

	// バイト同一のチャンクだけを重複排除する
	// 近いが異なるテキストは正当な別パッセージとして残す
	seen := make(map[string]bool, len(scored))
	sourceSeen := make(map[library.DocumentType]bool)
	for _, sc := range scored {
		if sc.Score < s.relevanceFloor {
			continue
		}
		if seen[sc.Chunk.Content] {
			continue
		}
		seen[sc.Chunk.Content] = true

		result.Chunks = append(result.Chunks, RetrievedChunk{
			Text:    sc.Chunk.Content,
			Pages:   sc.Chunk.Pages,
			DocType: sc.DocType,
			Score:   sc.Score,
		})
		if !sourceSeen[sc.DocType] {
			sourceSeen[sc.DocType] = true
			result.SourcesUsed = append(result.SourcesUsed, sc.DocType)
		}
	}

	if len(result.Chunks) == 0 {
		result.BelowFloor = true
		s.logger.Info("閾値を超えるチャンクなし",
			"game", game.Title,
			"candidates", len(scored),
		)
	}

	return result, nil
}

// SourcePages は結果に含まれる全ページを重複なし・昇順で返す
func (r *Result) SourcePages() []int {
	seen := make(map[int]bool)
	var pages []int
	for _, c := range r.Chunks {
		for _, p := range c.Pages {
			if !seen[p] {
				seen[p] = true
				pages = append(pages, p)
			}
		}
	}
	sort.Ints(pages)
	return pages
}

// wrapTimeout は期限超過を RetrievalTimeout に写像する
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", library.ErrRetrievalTimeout, err)
	}
	return err
}
