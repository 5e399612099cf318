package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/merrymeeple/meeple-rag/internal/core/ingest"
	"github.com/merrymeeple/meeple-rag/internal/core/library"
	"github.com/merrymeeple/meeple-rag/internal/core/retrieve"
	"github.com/merrymeeple/meeple-rag/internal/infra/anthropic"
	"github.com/merrymeeple/meeple-rag/internal/infra/notify"
	infraopenai "github.com/merrymeeple/meeple-rag/internal/infra/openai"
	"github.com/merrymeeple/meeple-rag/internal/infra/pdfext"
	"github.com/merrymeeple/meeple-rag/internal/infra/postgres"
	"github.com/merrymeeple/meeple-rag/internal/platform/config"
	"github.com/merrymeeple/meeple-rag/internal/platform/database"
	"github.com/merrymeeple/meeple-rag/internal/platform/logger"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config   *config.Config
	Logger   *slog.Logger
	Database *database.DB
	Store    *postgres.Store
	Embedder *infraopenai.Embedder
}

// NewAppContext は設定を読み込み、DB接続とマイグレーション、
// 埋め込み設定の整合性チェックまでを済ませた AppContext を作成する
func NewAppContext(ctx context.Context, envFile string) (*AppContext, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	appLogger := logger.New(logger.DefaultConfig())

	dbParams := database.ConnectionParams{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}

	if err := database.RunMigrations(dbParams.DSN(), appLogger); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	db, err := database.New(ctx, dbParams)
	if err != nil {
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	store := postgres.NewStore(db.Pool)
	embedder := infraopenai.NewEmbedder(cfg.OpenAI.APIKey,
		infraopenai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		infraopenai.WithEmbeddingDimension(cfg.OpenAI.EmbeddingDimension),
	)

	if err := checkEmbeddingMeta(ctx, store, embedder); err != nil {
		db.Close()
		return nil, err
	}

	return &AppContext{
		Config:   cfg,
		Logger:   appLogger,
		Database: db,
		Store:    store,
		Embedder: embedder,
	}, nil
}

// checkEmbeddingMeta はライブラリの埋め込み設定と現在の設定の整合性を確認する
// 未初期化なら現在の設定を記録し、次元やモデルが食い違う場合は起動を拒否する
func checkEmbeddingMeta(ctx context.Context, store *postgres.Store, embedder *infraopenai.Embedder) error {
	metaOpt, err := store.GetMeta(ctx)
	if err != nil {
		return fmt.Errorf("埋め込み設定の取得に失敗: %w", err)
	}

	meta, ok := metaOpt.Get()
	if !ok {
		return store.InitMeta(ctx, library.Meta{
			EmbeddingModel:     embedder.ModelName(),
			EmbeddingDimension: embedder.Dimension(),
		})
	}

	if meta.EmbeddingDimension != embedder.Dimension() || meta.EmbeddingModel != embedder.ModelName() {
		return fmt.Errorf("%w: library uses %s (%d dims), configured %s (%d dims)",
			library.ErrDimensionalityMismatch,
			meta.EmbeddingModel, meta.EmbeddingDimension,
			embedder.ModelName(), embedder.Dimension(),
		)
	}

	return nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.Database != nil {
		ac.Database.Close()
	}
}

// NewIngestService は取り込みパイプラインを組み立てる
func (ac *AppContext) NewIngestService() (*ingest.Service, error) {
	chunker, err := ingest.NewChunker(
		ingest.WithTargetTokens(ac.Config.Chunking.TargetTokens),
		ingest.WithOverlapTokens(ac.Config.Chunking.OverlapTokens),
	)
	if err != nil {
		return nil, fmt.Errorf("Chunker初期化に失敗: %w", err)
	}

	return ingest.NewService(ac.Store, pdfext.NewExtractor(), ac.Embedder, chunker,
		ingest.WithFileTimeout(ac.Config.IngestFileTimeout),
		ingest.WithIngestLogger(ac.Logger),
	), nil
}

// NewRetrieveService は検索サービスを組み立てる
func (ac *AppContext) NewRetrieveService() *retrieve.Service {
	return retrieve.NewService(ac.Store, ac.Embedder,
		retrieve.WithTopK(ac.Config.Retrieval.TopK),
		retrieve.WithRelevanceFloor(ac.Config.Retrieval.RelevanceFloor),
		retrieve.WithRetrieveLogger(ac.Logger),
	)
}

// NewAnswerGenerator は回答生成クライアントを組み立てる
func (ac *AppContext) NewAnswerGenerator() *anthropic.Generator {
	return anthropic.NewGenerator(ac.Config.Anthropic.APIKey,
		anthropic.WithModel(ac.Config.Anthropic.Model),
	)
}

// NewNotifier はスタッフ通知器を組み立てる
func (ac *AppContext) NewNotifier() *notify.LogNotifier {
	return notify.NewLogNotifier(ac.Logger)
}
