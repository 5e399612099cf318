package retrieve

import (
	"context"
	"errors"
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
	game       *library.Game
	chunkCount int
	scored     []*library.ScoredChunk
	lastK      int
	searchErr  error
}

func (s *stubStore) UpsertDocument(ctx context.Context, params library.UpsertDocumentParams) (*library.UpsertResult, error) {
	return nil, nil
}

func (s *stubStore) GetGameByTitle(ctx context.Context, title string) (mo.Option[*library.Game], error) {
	if s.game == nil {
		return mo.None[*library.Game](), nil
	}
	return mo.Some(s.game), nil
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
	return false, nil
}

func (s *stubStore) CountChunks(ctx context.Context, gameID uuid.UUID) (int, error) {
	return s.chunkCount, nil
}

func (s *stubStore) SimilaritySearch(ctx context.Context, gameTitle string, queryVector []float32, k int) ([]*library.ScoredChunk, error) {
	s.lastK = k
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.scored, nil
}

func (s *stubStore) GetMeta(ctx context.Context) (mo.Option[*library.Meta], error) {
	return mo.None[*library.Meta](), nil
}

func (s *stubStore) InitMeta(ctx context.Context, meta library.Meta) error {
	return nil
}

type stubEmbedder struct {
	err error
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scoredChunk(content string, score float64, docType library.DocumentType, pages ...int) *library.ScoredChunk {
	return &library.ScoredChunk{
		Chunk: &library.Chunk{
			ID:      uuid.New(),
			Content: content,
			Pages:   pages,
		},
		DocType: docType,
		Score:   score,
	}
}

func catanStore() *stubStore {
	return &stubStore{
		game:       &library.Game{ID: uuid.New(), Title: "Catan"},
		chunkCount: 32,
	}
}

func TestRetrieve_GameNotFound(t *testing.T) {
	svc := NewService(&stubStore{}, &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	_, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "How do I win?"})
	assert.True(t, errors.Is(err, library.ErrGameNotFound))
}

func TestRetrieve_NoContentAvailable(t *testing.T) {
	store := catanStore()
	store.chunkCount = 0
	svc := NewService(store, &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	_, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "How do I win?"})
	assert.True(t, errors.Is(err, library.ErrNoContentAvailable))
	// 空の結果ではなくエラーとして区別される
	assert.Equal(t, 0, store.lastK)
}

func TestRetrieve_BelowFloor(t *testing.T) {
	store := catanStore()
	store.scored = []*library.ScoredChunk{
		scoredChunk("barely related text", 0.12, library.DocumentTypeRulebook, 3),
	}
	svc := NewService(store, &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	result, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "How do I win?"})
	require.NoError(t, err)
	assert.True(t, result.BelowFloor)
	assert.Empty(t, result.Chunks)
	assert.Empty(t, result.SourcesUsed)
}

func TestRetrieve_DeduplicatesIdenticalContent(t *testing.T) {
	store := catanStore()
	store.scored = []*library.ScoredChunk{
		scoredChunk("The longest road is worth 2 points.", 0.91, library.DocumentTypeRulebook, 12),
		scoredChunk("The longest road is worth 2 points.", 0.88, library.DocumentTypeFAQ, 2),
		scoredChunk("The longest road must be unbroken.", 0.85, library.DocumentTypeFAQ, 2),
	}
	svc := NewService(store, &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	result, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "longest road"})
	require.NoError(t, err)

	// バイト同一のチャンクは1件目だけ残る。似ているが異なるものは残る
	require.Len(t, result.Chunks, 2)
	assert.Equal(t, "The longest road is worth 2 points.", result.Chunks[0].Text)
	assert.Equal(t, "The longest road must be unbroken.", result.Chunks[1].Text)
}

func TestRetrieve_SourcesUsedInFirstAppearanceOrder(t *testing.T) {
	store := catanStore()
	store.scored = []*library.ScoredChunk{
		scoredChunk("Q: Can I trade during setup? A: No.", 0.92, library.DocumentTypeFAQ, 2),
		scoredChunk("Players may trade with the bank.", 0.87, library.DocumentTypeRulebook, 9),
		scoredChunk("Q: Do ports stack? A: No.", 0.80, library.DocumentTypeFAQ, 3),
	}
	svc := NewService(store, &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	result, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "trading"})
	require.NoError(t, err)

	assert.Equal(t, []library.DocumentType{
		library.DocumentTypeFAQ,
		library.DocumentTypeRulebook,
	}, result.SourcesUsed)
	assert.False(t, result.BelowFloor)
}

func TestRetrieve_TopKOverride(t *testing.T) {
	store := catanStore()
	svc := NewService(store, &stubEmbedder{}, WithTopK(5), WithRetrieveLogger(testLogger()))

	_, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "setup", TopK: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, store.lastK)

	// 0以下はサービスのデフォルトに落ちる
	_, err = svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "setup"})
	require.NoError(t, err)
	assert.Equal(t, 5, store.lastK)
}

func TestRetrieve_ValidatesParams(t *testing.T) {
	svc := NewService(catanStore(), &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	_, err := svc.Retrieve(context.Background(), Params{Question: "setup"})
	assert.Error(t, err)

	_, err = svc.Retrieve(context.Background(), Params{GameTitle: "Catan"})
	assert.Error(t, err)
}

func TestRetrieve_TimeoutMapped(t *testing.T) {
	store := catanStore()
	store.searchErr = context.DeadlineExceeded
	svc := NewService(store, &stubEmbedder{}, WithRetrieveLogger(testLogger()))

	_, err := svc.Retrieve(context.Background(), Params{GameTitle: "Catan", Question: "setup"})
	assert.True(t, errors.Is(err, library.ErrRetrievalTimeout))
}

func TestResult_SourcePages(t *testing.T) {
	result := &Result{
		Chunks: []RetrievedChunk{
			{Pages: []int{12, 13}},
			{Pages: []int{3}},
			{Pages: []int{12}},
		},
	}
	assert.Equal(t, []int{3, 12, 13}, result.SourcePages())
}

func TestNewAnswerRequest(t *testing.T) {
	result := &Result{
		GameTitle: "Catan",
		Chunks: []RetrievedChunk{
			{Text: "Players may trade with the bank.", Pages: []int{9}, DocType: library.DocumentTypeRulebook, Score: 0.9},
		},
		SourcesUsed: []library.DocumentType{library.DocumentTypeRulebook, library.DocumentTypeFAQ},
	}

	req := NewAnswerRequest("Can I trade?", result)
	assert.Equal(t, "Catan", req.GameTitle)
	assert.Equal(t, "Can I trade?", req.Question)
	assert.Equal(t, []string{"rulebook", "faq"}, req.SourcesUsed)
	require.Len(t, req.Chunks, 1)
}
