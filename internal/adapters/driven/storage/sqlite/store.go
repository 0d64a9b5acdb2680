// Package sqlite implements the embedded document store.
//
// The store lives entirely in memory: it is rebuilt from the corpus on
// every session and never persisted. One SQLite instance backs three
// ports: document persistence, FTS5 keyword search, and vector
// similarity search over embedding blobs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sitesearch-cli/internal/core/domain"
	"github.com/custodia-labs/sitesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/sitesearch-cli/internal/logger"
)

// Ensure Store implements the driven ports.
var (
	_ driven.DocumentStore = (*Store)(nil)
	_ driven.SearchEngine  = (*Store)(nil)
	_ driven.VectorIndex   = (*Store)(nil)
)

// maxSearchRows caps keyword search results regardless of the caller's limit.
const maxSearchRows = 100

// reservedChars are characters with meaning in the FTS5 query syntax.
// A query containing any of them skips the ranked path entirely and uses
// substring matching only, trading ranking quality for robustness.
const reservedChars = `&|!():'"<>@*~`

// schema creates the documents table, the external-content FTS5 index
// over title and content, and the triggers that keep them in sync.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id      TEXT PRIMARY KEY,
	title   TEXT NOT NULL DEFAULT '',
	path    TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	date    TEXT,
	excerpt TEXT
);

CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	title, content,
	content='documents',
	content_rowid='rowid',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
	INSERT INTO documents_fts(rowid, title, content)
	VALUES (new.rowid, new.title, new.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content)
	VALUES ('delete', old.rowid, old.title, old.content);
END;

CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
	INSERT INTO documents_fts(documents_fts, rowid, title, content)
	VALUES ('delete', old.rowid, old.title, old.content);
	INSERT INTO documents_fts(rowid, title, content)
	VALUES (new.rowid, new.title, new.content);
END;
`

// Store is the in-memory SQLite document index.
type Store struct {
	db *sql.DB

	mu          sync.RWMutex
	vectorReady bool
}

// storeSeq distinguishes in-memory databases so a rebuilt store never
// shares cache pages with one that is still closing.
var storeSeq atomic.Int64

// NewStore creates a fresh in-memory store with the documents table and
// lexical indexes. Failures wrap domain.ErrStoreUnavailable so callers
// can treat them as "search disabled" rather than fatal.
func NewStore() (*Store, error) {
	dsn := fmt.Sprintf("file:sitesearch-%d?mode=memory&cache=shared", storeSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", domain.ErrStoreUnavailable, err)
	}

	// A single connection keeps the shared in-memory database alive and
	// sidesteps shared-cache lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", domain.ErrStoreUnavailable, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection, discarding the session's index.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureVectorSupport adds the fixed-width embedding column when it does
// not exist yet. Idempotent: the schema is introspected before mutation.
func (s *Store) EnsureVectorSupport(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vectorReady {
		return nil
	}

	has, err := s.hasColumn(ctx, "documents", "embedding")
	if err != nil {
		return fmt.Errorf("introspecting schema: %w", err)
	}

	if !has {
		if _, err := s.db.ExecContext(ctx, "ALTER TABLE documents ADD COLUMN embedding BLOB"); err != nil {
			return fmt.Errorf("adding embedding column: %w", err)
		}
		logger.Debug("Vector support enabled: embedding column added")
	}

	s.vectorReady = true
	return nil
}

// hasColumn checks table schema via PRAGMA table_info.
func (s *Store) hasColumn(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}

	return false, rows.Err()
}

// hasVectorColumn reports whether vector support has been enabled.
func (s *Store) hasVectorColumn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectorReady
}

// ==================== Document Store ====================

// UpsertDocuments inserts or updates a batch of documents inside a single
// transaction. Upsert semantics make repeated loads idempotent per id.
func (s *Store) UpsertDocuments(ctx context.Context, docs []domain.Document) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	withVectors := s.hasVectorColumn()

	query := `
		INSERT INTO documents (id, title, path, content, date, excerpt)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			path = excluded.path,
			content = excluded.content,
			date = excluded.date,
			excerpt = excluded.excerpt
	`
	if withVectors {
		query = `
			INSERT INTO documents (id, title, path, content, date, excerpt, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				path = excluded.path,
				content = excluded.content,
				date = excluded.date,
				excerpt = excluded.excerpt,
				embedding = excluded.embedding
		`
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		doc := &docs[i]
		args := []any{doc.ID, doc.Title, doc.Path, doc.Content,
			nullString(doc.Date), emptyToNull(doc.Excerpt)}
		if withVectors {
			args = append(args, float32SliceToBytes(doc.Embedding))
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("saving document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by id, including its content and
// embedding when present.
func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	query := "SELECT id, title, path, content, date, excerpt FROM documents WHERE id = ?"
	if s.hasVectorColumn() {
		query = "SELECT id, title, path, content, date, excerpt, embedding FROM documents WHERE id = ?"
	}

	row := s.db.QueryRowContext(ctx, query, id)

	var (
		doc           domain.Document
		date, excerpt sql.NullString
		embedding     []byte
	)

	dest := []any{&doc.ID, &doc.Title, &doc.Path, &doc.Content, &date, &excerpt}
	if s.hasVectorColumn() {
		dest = append(dest, &embedding)
	}

	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if date.Valid {
		doc.Date = &date.String
	}
	doc.Excerpt = excerpt.String
	doc.Embedding = bytesToFloat32Slice(embedding)

	return &doc, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// SetEmbedding stores a vector for an existing document.
func (s *Store) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	if !s.hasVectorColumn() {
		return fmt.Errorf("set embedding: vector support not enabled")
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET embedding = ? WHERE id = ?",
		float32SliceToBytes(embedding), id)
	if err != nil {
		return fmt.Errorf("setting embedding: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("setting embedding: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ==================== Search Engine ====================

// Search performs keyword search over title and content.
//
// Queries containing FTS5 reserved characters would break the query
// parser outright, so they take a substring-only path with a constant
// rank. All other queries combine a prefix FTS match (title weighted 2x)
// with an OR-ed substring fallback, so partial or stemmed misses still
// surface. Results are ordered by date descending (nulls last), then rank.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	tokens := strings.Fields(strings.TrimSpace(query))
	if len(tokens) == 0 {
		return []domain.SearchResult{}, nil
	}

	if limit <= 0 || limit > maxSearchRows {
		limit = maxSearchRows
	}

	for _, tok := range tokens {
		if strings.ContainsAny(tok, reservedChars) {
			logger.Debug("Reserved character in query %q, using substring path", query)
			return s.SearchSubstring(ctx, query, limit)
		}
	}

	// Prefix match per token, AND-joined: every token must match.
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + tok + `"*`
	}
	match := strings.Join(quoted, " AND ")

	likeConds, likeArgs := substringConditions(tokens)

	//nolint:gosec // likeConds is built from placeholders only
	sqlQuery := fmt.Sprintf(`
		SELECT d.id, d.title, d.path, d.date, d.excerpt,
		       COALESCE(-f.rank, 0.0) AS score
		FROM documents d
		LEFT JOIN (
			SELECT rowid, bm25(documents_fts, 2.0, 1.0) AS rank
			FROM documents_fts
			WHERE documents_fts MATCH ?
		) f ON f.rowid = d.rowid
		WHERE f.rowid IS NOT NULL OR %s
		ORDER BY d.date IS NULL, d.date DESC, score DESC
		LIMIT ?
	`, likeConds)

	args := append([]any{match}, likeArgs...)
	args = append(args, limit)

	results, err := s.queryResults(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword search: %v", domain.ErrQueryFailed, err)
	}
	return results, nil
}

// SearchSubstring performs a case-insensitive substring match across
// title and content, OR-combined per token. Rank is a constant
// placeholder; ordering is purely by date.
func (s *Store) SearchSubstring(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	tokens := strings.Fields(strings.TrimSpace(query))
	if len(tokens) == 0 {
		return []domain.SearchResult{}, nil
	}

	if limit <= 0 || limit > maxSearchRows {
		limit = maxSearchRows
	}

	likeConds, likeArgs := substringConditions(tokens)

	//nolint:gosec // likeConds is built from placeholders only
	sqlQuery := fmt.Sprintf(`
		SELECT id, title, path, date, excerpt, 1.0 AS score
		FROM documents
		WHERE %s
		ORDER BY date IS NULL, date DESC
		LIMIT ?
	`, likeConds)

	args := append(likeArgs, limit)

	results, err := s.queryResults(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: substring search: %v", domain.ErrQueryFailed, err)
	}
	return results, nil
}

// substringConditions builds an OR-joined LIKE clause over title and
// content for each token, with the matching argument list.
func substringConditions(tokens []string) (string, []any) {
	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*2)

	for _, tok := range tokens {
		conds = append(conds,
			`(lower(title) LIKE ? ESCAPE '\' OR lower(content) LIKE ? ESCAPE '\')`)
		pattern := "%" + escapeLike(strings.ToLower(tok)) + "%"
		args = append(args, pattern, pattern)
	}

	return "(" + strings.Join(conds, " OR ") + ")", args
}

// escapeLike escapes LIKE wildcards in a token.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// queryResults runs a search query and scans the result rows.
func (s *Store) queryResults(ctx context.Context, query string, args ...any) ([]domain.SearchResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var (
			r             domain.SearchResult
			date, excerpt sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Path, &date, &excerpt, &r.Score); err != nil {
			return nil, err
		}
		if date.Valid {
			r.Date = &date.String
		}
		r.Excerpt = excerpt.String
		results = append(results, r)
	}

	return results, rows.Err()
}

// ==================== Vector Index ====================

// HasVectors reports whether any stored document carries an embedding.
func (s *Store) HasVectors(ctx context.Context) (bool, error) {
	if !s.hasVectorColumn() {
		return false, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE embedding IS NOT NULL").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting embeddings: %w", err)
	}
	return count > 0, nil
}

// Nearest ranks all embedded documents by ascending cosine distance to
// the query vector and returns the top k with similarity scores.
// An empty result (nil error) means no document has an embedding yet.
func (s *Store) Nearest(ctx context.Context, query []float32, k int) ([]domain.SearchResult, error) {
	if !s.hasVectorColumn() {
		return []domain.SearchResult{}, nil
	}
	if k <= 0 {
		k = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, path, date, excerpt, embedding
		FROM documents WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", domain.ErrQueryFailed, err)
	}
	defer rows.Close()

	results := []domain.SearchResult{}
	for rows.Next() {
		var (
			r             domain.SearchResult
			date, excerpt sql.NullString
			blob          []byte
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Path, &date, &excerpt, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning embedding row: %v", domain.ErrQueryFailed, err)
		}
		if date.Valid {
			r.Date = &date.String
		}
		r.Excerpt = excerpt.String
		r.Score = cosineSimilarity(query, bytesToFloat32Slice(blob))
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating embeddings: %v", domain.ErrQueryFailed, err)
	}

	sortBySimilarity(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// nullString converts an optional string to a driver-friendly value.
func nullString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// emptyToNull stores empty strings as NULL.
func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// sortBySimilarity orders vector hits best-first.
func sortBySimilarity(results []domain.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
