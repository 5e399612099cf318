package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/samber/mo"

	"github.com/merrymeeple/meeple-rag/internal/core/library"
	"github.com/merrymeeple/meeple-rag/internal/platform/database"
)

// Store は library.Store を実装する PostgreSQL ストア
type Store struct {
	pool *pgxpool.Pool
	txp  *database.TransactionProvider
}

// NewStore は新しい Store を作成します
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		txp:  database.NewTransactionProvider(pool),
	}
}

// コンパイル時の型チェック
var _ library.Store = (*Store)(nil)

const getGameByTitleQuery = `
SELECT id, title, created_at
FROM games
WHERE title_key = lower($1)
`

func (s *Store) GetGameByTitle(ctx context.Context, title string) (mo.Option[*library.Game], error) {
	var game library.Game
	err := s.pool.QueryRow(ctx, getGameByTitleQuery, title).Scan(&game.ID, &game.Title, &game.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return mo.None[*library.Game](), nil
		}
		return mo.None[*library.Game](), fmt.Errorf("failed to get game: %w", err)
	}
	return mo.Some(&game), nil
}

const getDocumentByFingerprintQuery = `
SELECT id
FROM documents
WHERE game_id = $1 AND fingerprint = $2
`

const getGameIDByTitleQuery = `
SELECT id
FROM games
WHERE title_key = lower($1)
`

const insertGameQuery = `
INSERT INTO games (title, title_key)
VALUES ($1, lower($1))
RETURNING id
`

const insertDocumentQuery = `
INSERT INTO documents (game_id, file_name, doc_type, page_count, fingerprint)
VALUES ($1, $2, $3, $4, $5)
RETURNING id
`

const insertChunkQuery = `
INSERT INTO chunks (document_id, ordinal, pages, content, token_count, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
`

// UpsertDocument はゲームの解決/作成、文書とチャンクの挿入を1トランザクションで行う
// 同一ゲーム・同一フィンガープリントの文書が既に存在する場合は何も書き込まない
func (s *Store) UpsertDocument(ctx context.Context, params library.UpsertDocumentParams) (*library.UpsertResult, error) {
	return database.Transact(ctx, s.txp, func(tx pgx.Tx) (*library.UpsertResult, error) {
		result := &library.UpsertResult{}

		var gameID uuid.UUID
		err := tx.QueryRow(ctx, getGameIDByTitleQuery, params.GameTitle).Scan(&gameID)
		if err == pgx.ErrNoRows {
			if err := tx.QueryRow(ctx, insertGameQuery, params.GameTitle).Scan(&gameID); err != nil {
				return nil, fmt.Errorf("failed to create game: %w", err)
			}
			result.CreatedGame = true
		} else if err != nil {
			return nil, fmt.Errorf("failed to resolve game: %w", err)
		}
		result.GameID = gameID

		var existingDocID uuid.UUID
		err = tx.QueryRow(ctx, getDocumentByFingerprintQuery, gameID, params.Fingerprint).Scan(&existingDocID)
		if err == nil {
			result.AlreadyProcessed = true
			result.DocumentID = existingDocID
			return result, nil
		}
		if err != pgx.ErrNoRows {
			return nil, fmt.Errorf("failed to check fingerprint: %w", err)
		}

		var docID uuid.UUID
		err = tx.QueryRow(ctx, insertDocumentQuery,
			gameID,
			params.FileName,
			string(params.DocType),
			params.PageCount,
			params.Fingerprint,
		).Scan(&docID)
		if err != nil {
			return nil, fmt.Errorf("failed to create document: %w", err)
		}
		result.DocumentID = docID

		batch := &pgx.Batch{}
		for _, chunk := range params.Chunks {
			batch.Queue(insertChunkQuery,
				docID,
				chunk.Ordinal,
				chunk.Pages,
				chunk.Content,
				chunk.TokenCount,
				pgvector.NewVector(chunk.Embedding),
			)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range params.Chunks {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return nil, fmt.Errorf("failed to insert chunk at index %d: %w", i, err)
			}
		}
		if err := results.Close(); err != nil {
			return nil, fmt.Errorf("failed to flush chunk batch: %w", err)
		}

		return result, nil
	})
}

const listGamesQuery = `
SELECT
    g.id,
    g.title,
    g.created_at,
    COALESCE(SUM(d.page_count), 0) AS page_count
FROM games g
LEFT JOIN documents d ON d.game_id = g.id
GROUP BY g.id, g.title, g.created_at
ORDER BY g.title
`

const countChunksByTypeQuery = `
SELECT d.game_id, d.doc_type, COUNT(c.id)
FROM documents d
JOIN chunks c ON c.document_id = d.id
GROUP BY d.game_id, d.doc_type
`

func (s *Store) ListGames(ctx context.Context) ([]*library.GameStats, error) {
	rows, err := s.pool.Query(ctx, listGamesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	stats := make([]*library.GameStats, 0)
	byID := make(map[uuid.UUID]*library.GameStats)
	for rows.Next() {
		var st library.GameStats
		if err := rows.Scan(&st.ID, &st.Title, &st.CreatedAt, &st.PageCount); err != nil {
			return nil, fmt.Errorf("failed to scan game stats: %w", err)
		}
		st.ChunksByType = make(map[library.DocumentType]int)
		stats = append(stats, &st)
		byID[st.ID] = &st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read game stats: %w", err)
	}

	typeRows, err := s.pool.Query(ctx, countChunksByTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks by type: %w", err)
	}
	defer typeRows.Close()

	for typeRows.Next() {
		var gameID uuid.UUID
		var docType string
		var count int
		if err := typeRows.Scan(&gameID, &docType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan chunk counts: %w", err)
		}
		if st, ok := byID[gameID]; ok {
			st.ChunksByType[library.DocumentType(docType)] = count
			st.ChunkCount += count
		}
	}
	if err := typeRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunk counts: %w", err)
	}

	return stats, nil
}

const listDocumentsByGameQuery = `
SELECT id, game_id, file_name, doc_type, page_count, fingerprint, ingest_seq, ingested_at
FROM documents
WHERE game_id = $1
ORDER BY ingest_seq
`

func (s *Store) ListDocumentsByGame(ctx context.Context, gameID uuid.UUID) ([]*library.SourceDocument, error) {
	rows, err := s.pool.Query(ctx, listDocumentsByGameQuery, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*library.SourceDocument, 0)
	for rows.Next() {
		var doc library.SourceDocument
		var docType string
		if err := rows.Scan(&doc.ID, &doc.GameID, &doc.FileName, &docType, &doc.PageCount, &doc.Fingerprint, &doc.IngestSeq, &doc.IngestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc.DocType = library.DocumentType(docType)
		docs = append(docs, &doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read documents: %w", err)
	}

	return docs, nil
}

const deleteGameQuery = `
DELETE FROM games
WHERE title_key = lower($1)
`

// DeleteGame はゲームを削除する。配下の文書とチャンクは外部キーで連鎖削除される
func (s *Store) DeleteGame(ctx context.Context, title string) error {
	tag, err := s.pool.Exec(ctx, deleteGameQuery, title)
	if err != nil {
		return fmt.Errorf("failed to delete game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return library.ErrGameNotFound
	}
	return nil
}

const hasFingerprintQuery = `
SELECT EXISTS (
    SELECT 1
    FROM documents d
    JOIN games g ON g.id = d.game_id
    WHERE g.title_key = lower($1) AND d.fingerprint = $2
)
`

func (s *Store) HasFingerprint(ctx context.Context, gameTitle string, fingerprint string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, hasFingerprintQuery, gameTitle, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return exists, nil
}

const countChunksQuery = `
SELECT COUNT(c.id)
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.game_id = $1
`

func (s *Store) CountChunks(ctx context.Context, gameID uuid.UUID) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, countChunksQuery, gameID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

const similaritySearchQuery = `
SELECT
    c.id,
    c.document_id,
    c.ordinal,
    c.pages,
    c.content,
    c.token_count,
    d.doc_type,
    1 - (c.embedding <=> $2) AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id
JOIN games g ON g.id = d.game_id
WHERE g.title_key = lower($1)
ORDER BY c.embedding <=> $2, d.ingest_seq, c.ordinal
LIMIT $3
`

// SimilaritySearch はコサイン類似度の上位k件を返す
// スコア同点時は文書の取り込み順、次いでチャンク順で安定に並ぶ
func (s *Store) SimilaritySearch(ctx context.Context, gameTitle string, queryVector []float32, k int) ([]*library.ScoredChunk, error) {
	rows, err := s.pool.Query(ctx, similaritySearchQuery, gameTitle, pgvector.NewVector(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	results := make([]*library.ScoredChunk, 0, k)
	for rows.Next() {
		var chunk library.Chunk
		var docType string
		var score float64
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Ordinal, &chunk.Pages, &chunk.Content, &chunk.TokenCount, &docType, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &library.ScoredChunk{
			Chunk:   &chunk,
			DocType: library.DocumentType(docType),
			Score:   score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}

	return results, nil
}

const getMetaQuery = `
SELECT embedding_model, embedding_dimension
FROM library_meta
`

func (s *Store) GetMeta(ctx context.Context) (mo.Option[*library.Meta], error) {
	var meta library.Meta
	err := s.pool.QueryRow(ctx, getMetaQuery).Scan(&meta.EmbeddingModel, &meta.EmbeddingDimension)
	if err != nil {
		if err == pgx.ErrNoRows {
			return mo.None[*library.Meta](), nil
		}
		return mo.None[*library.Meta](), fmt.Errorf("failed to get library meta: %w", err)
	}
	return mo.Some(&meta), nil
}

const initMetaQuery = `
INSERT INTO library_meta (embedding_model, embedding_dimension)
VALUES ($1, $2)
ON CONFLICT (singleton) DO NOTHING
`

func (s *Store) InitMeta(ctx context.Context, meta library.Meta) error {
	if _, err := s.pool.Exec(ctx, initMetaQuery, meta.EmbeddingModel, meta.EmbeddingDimension); err != nil {
		return fmt.Errorf("failed to init library meta: %w", err)
	}
	return nil
}
