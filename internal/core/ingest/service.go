package ingest

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

// FileStatus はバッチレポート内の1ファイルの処理結果
type FileStatus string

const (
	// StatusCreated は新規ゲームが作成された
	StatusCreated FileStatus = "created"
	// StatusMerged は既存ゲームに文書が追加された
	StatusMerged FileStatus = "merged"
	// StatusSkipped は同一フィンガープリントが処理済みだった
	StatusSkipped FileStatus = "skipped"
	// StatusFailed は処理に失敗した（バッチは継続する）
	StatusFailed FileStatus = "failed"
)

// 失敗理由の分類。レポートの Reason に入る
const (
	ReasonEmptyDocument  = "empty_document"
	ReasonEmbeddingError = "embedding_service_error"
	ReasonTimeout        = "timeout"
	ReasonExtractError   = "extract_error"
	ReasonStoreError     = "store_error"
)

// FileReport は1ファイルの処理結果
type FileReport struct {
	FileName  string
	GameTitle string
	DocType   library.DocumentType
	Status    FileStatus
	Chunks    int
	Reason    string // Status == failed のときのみ
	Err       error  // Status == failed のときのみ
}

// BatchReport はバッチ全体の処理結果
// 1ファイルの失敗でバッチは止まらず、必ず全ファイル分のエントリを持つ
type BatchReport struct {
	Files   []*FileReport
	Created int
	Merged  int
	Skipped int
	Failed  int
}

func (r *BatchReport) add(fr *FileReport) {
	r.Files = append(r.Files, fr)
	switch fr.Status {
	case StatusCreated:
		r.Created++
	case StatusMerged:
		r.Merged++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

const (
	// DefaultFileTimeout は1ファイルあたりの処理時間予算
	DefaultFileTimeout = 5 * time.Minute
)

// Service は取り込みパイプラインのユースケースを提供する
// 抽出 → 同定 → チャンク化 → 埋め込み → 永続化をファイル単位で回す
type Service struct {
	store       library.Store
	extractor   PageExtractor
	embedder    Embedder
	chunker     *Chunker
	fileTimeout time.Duration
	logger      *slog.Logger
}

type serviceOptions struct {
	fileTimeout time.Duration
	logger      *slog.Logger
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*serviceOptions)

// WithFileTimeout は1ファイルあたりの時間予算を上書きする
func WithFileTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		o.fileTimeout = d
	}
}

// WithIngestLogger は Service にロガーを設定する
func WithIngestLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService は新しい取り込み Service を作成する
func NewService(store library.Store, extractor PageExtractor, embedder Embedder, chunker *Chunker, opts ...ServiceOption) *Service {
	options := serviceOptions{
		fileTimeout: DefaultFileTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	return &Service{
		store:       store,
		extractor:   extractor,
		embedder:    embedder,
		chunker:     chunker,
		fileTimeout: options.fileTimeout,
		logger:      options.logger,
	}
}

// IngestBatch はファイル群を取り込み、ファイル単位のレポートを返す
// ファイル名ソート順で処理するため、同一バッチの再実行は同一のレポートを生む
func (s *Service) IngestBatch(ctx context.Context, paths []string) *BatchReport {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Slice(sorted, func(i, j int) bool {
		return filepath.Base(sorted[i]) < filepath.Base(sorted[j])
	})

	s.logger.Info("バッチ取り込みを開始", "files", len(sorted))

	report := &BatchReport{}
	for _, path := range sorted {
		fr := s.ingestFile(ctx, path)
		if fr.Status == StatusFailed {
			s.logger.Warn("ファイルの取り込みに失敗",
				"file", fr.FileName,
				"reason", fr.Reason,
				"error", fr.Err,
			)
		} else {
			s.logger.Info("ファイルを処理",
				"file", fr.FileName,
				"game", fr.GameTitle,
				"status", fr.Status,
				"chunks", fr.Chunks,
			)
		}
		report.add(fr)
	}

	s.logger.Info("バッチ取り込みが完了",
		"created", report.Created,
		"merged", report.Merged,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)

	return report
}

// ingestFile は1ファイルを取り込む。失敗はレポートに記録し、呼び出し側へは返さない
func (s *Service) ingestFile(parent context.Context, path string) *FileReport {
	fileName := filepath.Base(path)
	identity := ResolveIdentity(fileName)

	fr := &FileReport{
		FileName:  fileName,
		GameTitle: identity.GameTitle,
		DocType:   identity.DocType,
	}

	ctx, cancel := context.WithTimeout(parent, s.fileTimeout)
	defer cancel()

	pages, err := s.extractor.ExtractPages(ctx, path)
	if err != nil {
		fr.Status = StatusFailed
		fr.Reason = classifyFailure(err, ReasonExtractError)
		fr.Err = err
		return fr
	}

	fingerprint := computeFingerprint(pages)

	processed, err := s.store.HasFingerprint(ctx, identity.GameTitle, fingerprint)
	if err != nil {
		fr.Status = StatusFailed
		fr.Reason = classifyFailure(err, ReasonStoreError)
		fr.Err = err
		return fr
	}
	if processed {
		fr.Status = StatusSkipped
		return fr
	}

	candidates, err := s.chunker.Chunk(pages)
	if err != nil {
		fr.Status = StatusFailed
		fr.Reason = classifyFailure(err, ReasonStoreError)
		fr.Err = err
		return fr
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.BatchEmbed(ctx, texts)
	if err != nil {
		fr.Status = StatusFailed
		fr.Reason = classifyFailure(err, ReasonEmbeddingError)
		fr.Err = err
		return fr
	}
	if len(vectors) != len(candidates) {
		fr.Status = StatusFailed
		fr.Reason = ReasonEmbeddingError
		fr.Err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(candidates))
		return fr
	}

	chunks := make([]library.ChunkInput, len(candidates))
	for i, c := range candidates {
		chunks[i] = library.ChunkInput{
			Ordinal:    c.Ordinal,
			Pages:      c.Pages,
			Content:    c.Text,
			TokenCount: c.TokenCount,
			Embedding:  vectors[i],
		}
	}

	result, err := s.store.UpsertDocument(ctx, library.UpsertDocumentParams{
		GameTitle:   identity.GameTitle,
		FileName:    fileName,
		DocType:     identity.DocType,
		PageCount:   len(pages),
		Fingerprint: fingerprint,
		Chunks:      chunks,
	})
	if err != nil {
		fr.Status = StatusFailed
		fr.Reason = classifyFailure(err, ReasonStoreError)
		fr.Err = err
		return fr
	}

	fr.Chunks = len(chunks)
	switch {
	case result.AlreadyProcessed:
		// 並行して同じファイルが先に入った場合もここに落ちる
		fr.Status = StatusSkipped
		fr.Chunks = 0
	case result.CreatedGame:
		fr.Status = StatusCreated
	default:
		fr.Status = StatusMerged
	}
	return fr
}

// classifyFailure はエラーをレポート用の失敗理由に分類する
func classifyFailure(err error, fallback string) string {
	var embErr *library.EmbeddingServiceError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, library.ErrEmptyDocument):
		return ReasonEmptyDocument
	case errors.As(err, &embErr):
		return ReasonEmbeddingError
	default:
		return fallback
	}
}

// computeFingerprint は全ページの連結テキストのSHA256を計算する
// 内容が変わらない限り再取り込みは no-op になる
func computeFingerprint(pages []Page) string {
	h := sha256.New()
	for _, p := range pages {
		h.Write([]byte(p.Text))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
