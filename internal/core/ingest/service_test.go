package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
)

type stubStore struct {
	fingerprints map[string]bool // "title/fingerprint"
	games        map[string]uuid.UUID
	upserts      []library.UpsertDocumentParams
	upsertErr    error
}

func newStubStore() *stubStore {
	return &stubStore{
		fingerprints: map[string]bool{},
		games:        map[string]uuid.UUID{},
	}
}

func (s *stubStore) UpsertDocument(ctx context.Context, params library.UpsertDocumentParams) (*library.UpsertResult, error) {
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	s.upserts = append(s.upserts, params)

	result := &library.UpsertResult{DocumentID: uuid.New()}
	key := params.GameTitle + "/" + params.Fingerprint
	if s.fingerprints[key] {
		result.AlreadyProcessed = true
		result.GameID = s.games[params.GameTitle]
		return result, nil
	}
	s.fingerprints[key] = true

	gameID, ok := s.games[params.GameTitle]
	if !ok {
		gameID = uuid.New()
		s.games[params.GameTitle] = gameID
		result.CreatedGame = true
	}
	result.GameID = gameID
	return result, nil
}

func (s *stubStore) GetGameByTitle(ctx context.Context, title string) (mo.Option[*library.Game], error) {
	if id, ok := s.games[title]; ok {
		return mo.Some(&library.Game{ID: id, Title: title}), nil
	}
	return mo.None[*library.Game](), nil
}

func (s *stubStore) ListGames(ctx context.Context) ([]*library.GameStats, error) {
	return nil, nil
}

func (s *stubStore) ListDocumentsByGame(ctx context.Context, gameID uuid.UUID) ([]*library.SourceDocument, error) {
	return nil, nil
}

func (s *stubStore) DeleteGame(ctx context.Context, title string) error {
	return nil
}

func (s *stubStore) HasFingerprint(ctx context.Context, gameTitle string, fingerprint string) (bool, error) {
	return s.fingerprints[gameTitle+"/"+fingerprint], nil
}

func (s *stubStore) CountChunks(ctx context.Context, gameID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *stubStore) SimilaritySearch(ctx context.Context, gameTitle string, queryVector []float32, k int) ([]*library.ScoredChunk, error) {
	return nil, nil
}

func (s *stubStore) GetMeta(ctx context.Context) (mo.Option[*library.Meta], error) {
	return mo.None[*library.Meta](), nil
}

func (s *stubStore) InitMeta(ctx context.Context, meta library.Meta) error {
	return nil
}

type stubExtractor struct {
	pages map[string][]Page
	errs  map[string]error
}

func (e *stubExtractor) ExtractPages(ctx context.Context, path string) ([]Page, error) {
	if err, ok := e.errs[path]; ok {
		return nil, err
	}
	return e.pages[path], nil
}

type stubEmbedder struct {
	err   error
	calls int
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func (e *stubEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 1, 0}
	}
	return vectors, nil
}

func (e *stubEmbedder) ModelName() string { return "stub-embedding" }
func (e *stubEmbedder) Dimension() int    { return 3 }
func (e *stubEmbedder) MaxBatchSize() int { return 100 }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, store library.Store, extractor PageExtractor, embedder Embedder) *Service {
	t.Helper()
	chunker := newTestChunker(t)
	return NewService(store, extractor, embedder, chunker, WithIngestLogger(testLogger()))
}

func rulebookPages(text string) []Page {
	return []Page{{Number: 1, Text: text}}
}

func TestIngestBatch_CreatedThenSkipped(t *testing.T) {
	store := newStubStore()
	extractor := &stubExtractor{pages: map[string][]Page{
		"/lib/wingspan-rulebook.pdf": rulebookPages("Place the bird feeder dice tower on the table."),
	}}
	svc := newTestService(t, store, extractor, &stubEmbedder{})

	first := svc.IngestBatch(context.Background(), []string{"/lib/wingspan-rulebook.pdf"})
	require.Len(t, first.Files, 1)
	assert.Equal(t, StatusCreated, first.Files[0].Status)
	assert.Equal(t, "Wingspan", first.Files[0].GameTitle)
	assert.Equal(t, 1, first.Created)

	// 同じ内容の再取り込みは no-op
	second := svc.IngestBatch(context.Background(), []string{"/lib/wingspan-rulebook.pdf"})
	require.Len(t, second.Files, 1)
	assert.Equal(t, StatusSkipped, second.Files[0].Status)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, store.upserts, 1)
}

func TestIngestBatch_MergesIntoExistingGame(t *testing.T) {
	store := newStubStore()
	extractor := &stubExtractor{pages: map[string][]Page{
		"/lib/catan-rulebook.pdf": rulebookPages("Each player starts with two settlements."),
		"/lib/catan-faq.pdf":      rulebookPages("Q: Can I trade on another player's turn? A: No."),
	}}
	svc := newTestService(t, store, extractor, &stubEmbedder{})

	report := svc.IngestBatch(context.Background(), []string{
		"/lib/catan-rulebook.pdf",
		"/lib/catan-faq.pdf",
	})

	require.Len(t, report.Files, 2)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Merged)
	// どちらの文書も同じゲームに属する
	assert.Len(t, store.games, 1)
	assert.Contains(t, store.games, "Catan")
}

func TestIngestBatch_ContinuesAfterFailures(t *testing.T) {
	store := newStubStore()
	extractor := &stubExtractor{
		pages: map[string][]Page{
			"/lib/azul-rulebook.pdf":  rulebookPages("Draft tiles from the factory displays."),
			"/lib/blank-rulebook.pdf": rulebookPages(""),
			"/lib/root-rulebook.pdf":  rulebookPages("The Marquise de Cat rules the forest."),
		},
		errs: map[string]error{
			"/lib/broken-rulebook.pdf": fmt.Errorf("pdf parse error"),
		},
	}
	svc := newTestService(t, store, extractor, &stubEmbedder{})

	report := svc.IngestBatch(context.Background(), []string{
		"/lib/azul-rulebook.pdf",
		"/lib/blank-rulebook.pdf",
		"/lib/broken-rulebook.pdf",
		"/lib/root-rulebook.pdf",
	})

	require.Len(t, report.Files, 4)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.Failed)

	byName := map[string]*FileReport{}
	for _, fr := range report.Files {
		byName[fr.FileName] = fr
	}
	assert.Equal(t, ReasonEmptyDocument, byName["blank-rulebook.pdf"].Reason)
	assert.Equal(t, ReasonExtractError, byName["broken-rulebook.pdf"].Reason)
	assert.Equal(t, StatusCreated, byName["azul-rulebook.pdf"].Status)
	assert.Equal(t, StatusCreated, byName["root-rulebook.pdf"].Status)
}

func TestIngestBatch_ProcessesInFileNameOrder(t *testing.T) {
	store := newStubStore()
	extractor := &stubExtractor{pages: map[string][]Page{
		"/b/zombicide-rulebook.pdf": rulebookPages("Spawn zombies at each spawn zone."),
		"/a/azul-rulebook.pdf":      rulebookPages("Draft tiles from the factory displays."),
		"/c/catan-rulebook.pdf":     rulebookPages("Each player starts with two settlements."),
	}}
	svc := newTestService(t, store, extractor, &stubEmbedder{})

	report := svc.IngestBatch(context.Background(), []string{
		"/b/zombicide-rulebook.pdf",
		"/c/catan-rulebook.pdf",
		"/a/azul-rulebook.pdf",
	})

	require.Len(t, report.Files, 3)
	assert.Equal(t, "azul-rulebook.pdf", report.Files[0].FileName)
	assert.Equal(t, "catan-rulebook.pdf", report.Files[1].FileName)
	assert.Equal(t, "zombicide-rulebook.pdf", report.Files[2].FileName)
}

func TestIngestBatch_EmbeddingFailure(t *testing.T) {
	store := newStubStore()
	extractor := &stubExtractor{pages: map[string][]Page{
		"/lib/catan-rulebook.pdf": rulebookPages("Each player starts with two settlements."),
	}}
	embedder := &stubEmbedder{
		err: &library.EmbeddingServiceError{Batch: 0, Err: errors.New("rate limited")},
	}
	svc := newTestService(t, store, extractor, embedder)

	report := svc.IngestBatch(context.Background(), []string{"/lib/catan-rulebook.pdf"})

	require.Len(t, report.Files, 1)
	assert.Equal(t, StatusFailed, report.Files[0].Status)
	assert.Equal(t, ReasonEmbeddingError, report.Files[0].Reason)
	// 失敗したファイルは永続化されない
	assert.Empty(t, store.upserts)
}

func TestComputeFingerprint_ContentSensitive(t *testing.T) {
	a := computeFingerprint([]Page{{Number: 1, Text: "hello"}, {Number: 2, Text: "world"}})
	b := computeFingerprint([]Page{{Number: 1, Text: "hello"}, {Number: 2, Text: "world"}})
	c := computeFingerprint([]Page{{Number: 1, Text: "hello"}, {Number: 2, Text: "world!"}})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
