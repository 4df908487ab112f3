// Knowledge store: tenant-partitioned chunk persistence with vector and
// keyword lookup. Embeddings are stored as JSON TEXT and cosine similarity is
// computed in-memory over the tenant's rows; at current knowledge-base sizes
// (hundreds of chunks per tenant) this beats maintaining an ANN index.
package knowledge

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/infra/llm"
	"github.com/clariohq/clario/pkg/uuid"
)

// ErrTenantRequired is returned when a store query is attempted without a
// tenant filter. The tenant scope is enforced here, not by caller discipline.
var ErrTenantRequired = errors.New("knowledge: tenant id is required")

const (
	maxKeywordTerms = 5 // query terms considered by keyword search
	minTermLen      = 3 // shorter terms are dropped (stopword-ish)
)

// Store persists knowledge chunks and serves similarity/keyword lookups.
type Store struct {
	db       *sql.DB
	provider llm.Provider
	log      zerolog.Logger
}

// NewStore creates a Store backed by the given DB and embedding provider.
func NewStore(db *sql.DB, provider llm.Provider, log zerolog.Logger) *Store {
	return &Store{db: db, provider: provider, log: log}
}

// UpsertChunk embeds the content and writes a chunk keyed by
// (tenant, products, language, content). The same key replaces the prior row,
// so re-ingesting identical content refreshes its embedding and metadata.
//
// If the embedding provider is unavailable the chunk is stored without a
// vector: keyword search still finds it, and the backfill worker embeds it
// once the provider recovers.
func (s *Store) UpsertChunk(ctx context.Context, input UpsertChunkInput) error {
	if input.TenantID == "" {
		return ErrTenantRequired
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return errors.New("knowledge: content is required")
	}

	var embeddingJSON sql.NullString
	resp, err := s.provider.Embed(ctx, llm.EmbedRequest{Texts: []string{content}})
	if err != nil || len(resp.Embeddings) == 0 {
		s.log.Warn().Err(err).Str("tenant_id", input.TenantID).
			Msg("embedding unavailable, storing chunk without vector")
	} else {
		encoded, marshalErr := json.Marshal(resp.Embeddings[0])
		if marshalErr != nil {
			return fmt.Errorf("knowledge: encoding embedding: %w", marshalErr)
		}
		embeddingJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	productsJSON, err := json.Marshal(normalizeProducts(input.Products))
	if err != nil {
		return fmt.Errorf("knowledge: encoding products: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	key := contentKey(input.Products, input.Language, content)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO knowledge_chunks
			(id, tenant_id, products, language, content, content_key, embedding,
			 source_title, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, content_key) DO UPDATE SET
			content      = excluded.content,
			embedding    = excluded.embedding,
			source_title = excluded.source_title,
			source_url   = excluded.source_url,
			updated_at   = excluded.updated_at
	`,
		uuid.NewV7().String(), input.TenantID, string(productsJSON),
		nullableStr(input.Language), content, key, embeddingJSON,
		nullableStr(input.SourceTitle), nullableStr(input.SourceURL), now, now,
	)
	if err != nil {
		return fmt.Errorf("knowledge: upserting chunk: %w", err)
	}
	return nil
}

// SearchBySimilarity returns embedded chunks whose cosine similarity to
// queryVec is at least f.MinSimilarity, scoped to f.TenantID, ordered by
// similarity descending and truncated to f.Limit. Ties keep insertion order.
func (s *Store) SearchBySimilarity(ctx context.Context, queryVec []float32, f SimilarityFilter) ([]SearchResult, error) {
	if f.TenantID == "" {
		return nil, ErrTenantRequired
	}

	chunks, err := s.fetchTenantChunks(ctx, f.TenantID, true)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		if !matchesScope(c, f.Products, f.Languages) {
			continue
		}
		sim := cosineSimilarity(queryVec, c.Embedding)
		if sim < f.MinSimilarity {
			continue
		}
		results = append(results, SearchResult{
			ID:          c.ID,
			Content:     c.Content,
			Similarity:  sim,
			SourceTitle: c.SourceTitle,
			SourceURL:   c.SourceURL,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return truncate(results, f.Limit), nil
}

// SearchByKeyword is the lexical path used while a tenant's partition has no
// embeddings. Terms are whitespace-split, lowercased, terms shorter than 3
// characters dropped, and at most 5 considered. A chunk matches when its
// content contains any term case-insensitively; the raw score is the total
// occurrence count across all terms, normalized to (0, 1) with c/(c+1) so it
// is comparable with similarity scores downstream.
func (s *Store) SearchByKeyword(ctx context.Context, query string, f KeywordFilter) ([]SearchResult, error) {
	if f.TenantID == "" {
		return nil, ErrTenantRequired
	}

	terms := extractTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	chunks, err := s.fetchTenantChunks(ctx, f.TenantID, false)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		if !matchesScope(c, f.Products, f.Languages) {
			continue
		}
		lower := strings.ToLower(c.Content)
		count := 0
		for _, term := range terms {
			count += strings.Count(lower, term)
		}
		if count == 0 {
			continue
		}
		results = append(results, SearchResult{
			ID:          c.ID,
			Content:     c.Content,
			Similarity:  float64(count) / float64(count+1),
			SourceTitle: c.SourceTitle,
			SourceURL:   c.SourceURL,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	return truncate(results, f.Limit), nil
}

// HasEmbeddings reports whether the tenant has at least one embedded chunk.
// The search service uses this to pick the vector or lexical path.
func (s *Store) HasEmbeddings(ctx context.Context, tenantID string) (bool, error) {
	if tenantID == "" {
		return false, ErrTenantRequired
	}
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM knowledge_chunks
		WHERE tenant_id = ? AND embedding IS NOT NULL
	`, tenantID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("knowledge: counting embedded chunks: %w", err)
	}
	return n > 0, nil
}

// ListUnembedded returns up to limit chunks that still lack a vector,
// oldest first. Used by the backfill worker.
func (s *Store) ListUnembedded(ctx context.Context, tenantID string, limit int) ([]KnowledgeChunk, error) {
	if tenantID == "" {
		return nil, ErrTenantRequired
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, products, language, content, content_key,
		       embedding, source_title, source_url, created_at, updated_at
		FROM knowledge_chunks
		WHERE tenant_id = ? AND embedding IS NULL
		ORDER BY created_at, id
		LIMIT ?
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("knowledge: listing unembedded chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// SetEmbedding stores a computed vector on an existing chunk. The tenant
// filter guards against a backfill worker crossing tenants on a stale ID.
func (s *Store) SetEmbedding(ctx context.Context, tenantID, chunkID string, vec []float32) error {
	if tenantID == "" {
		return ErrTenantRequired
	}
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("knowledge: encoding embedding: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		UPDATE knowledge_chunks SET embedding = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND embedding IS NULL
	`, string(encoded), now, chunkID, tenantID)
	if err != nil {
		return fmt.Errorf("knowledge: storing embedding: %w", err)
	}
	return nil
}

// fetchTenantChunks loads the tenant's chunks, optionally restricted to rows
// that already carry an embedding.
func (s *Store) fetchTenantChunks(ctx context.Context, tenantID string, embeddedOnly bool) ([]KnowledgeChunk, error) {
	q := `
		SELECT id, tenant_id, products, language, content, content_key,
		       embedding, source_title, source_url, created_at, updated_at
		FROM knowledge_chunks
		WHERE tenant_id = ?`
	if embeddedOnly {
		q += ` AND embedding IS NOT NULL`
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, fmt.Errorf("knowledge: fetching chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// scanChunks materializes query rows into KnowledgeChunk values. Rows with a
// malformed embedding are kept with a nil vector rather than failing the scan.
func scanChunks(rows *sql.Rows) ([]KnowledgeChunk, error) {
	var chunks []KnowledgeChunk
	for rows.Next() {
		var (
			c                          KnowledgeChunk
			productsJSON               string
			language, embedding        sql.NullString
			sourceTitle, sourceURL     sql.NullString
			createdAtRaw, updatedAtRaw string
		)
		if err := rows.Scan(&c.ID, &c.TenantID, &productsJSON, &language,
			&c.Content, &c.ContentKey, &embedding, &sourceTitle, &sourceURL,
			&createdAtRaw, &updatedAtRaw); err != nil {
			return nil, fmt.Errorf("knowledge: scanning chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(productsJSON), &c.Products); err != nil {
			c.Products = nil
		}
		c.Language = language.String
		c.SourceTitle = sourceTitle.String
		c.SourceURL = sourceURL.String
		if embedding.Valid {
			if vec, err := decodeEmbedding(embedding.String); err == nil {
				c.Embedding = vec
			}
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAtRaw)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtRaw)
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// matchesScope applies the optional product/language restrictions. A chunk
// with no product tags matches any product filter; a chunk with no language
// matches any language filter.
func matchesScope(c KnowledgeChunk, products, languages []string) bool {
	if len(products) > 0 && len(c.Products) > 0 {
		if !intersects(c.Products, products) {
			return false
		}
	}
	if len(languages) > 0 && c.Language != "" {
		if !containsFold(languages, c.Language) {
			return false
		}
	}
	return true
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if containsFold(b, x) {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, needle) {
			return true
		}
	}
	return false
}

// extractTerms splits a query into lowercase search terms: whitespace-split,
// terms shorter than minTermLen dropped, capped at maxKeywordTerms.
func extractTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, maxKeywordTerms)
	for _, f := range fields {
		if len(f) < minTermLen {
			continue
		}
		terms = append(terms, f)
		if len(terms) == maxKeywordTerms {
			break
		}
	}
	return terms
}

// contentKey derives the chunk's upsert identity from its scope and content.
func contentKey(products []string, language, content string) string {
	normalized := normalizeProducts(products)
	h := sha256.New()
	for _, p := range normalized {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	h.Write([]byte(strings.ToLower(language)))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeProducts lowercases, trims and sorts product tags so the upsert
// key is insensitive to tag order and casing.
func normalizeProducts(products []string) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// cosineSimilarity computes cosine similarity between two float32 vectors,
// clamped to [0, 1]. Returns 0 on dimension mismatch or zero magnitude.
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
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	sim := dot / denom
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// decodeEmbedding deserializes a JSON TEXT vector back to []float32.
func decodeEmbedding(jsonStr string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(jsonStr), &vec); err != nil {
		return nil, fmt.Errorf("knowledge: decoding embedding: %w", err)
	}
	return vec, nil
}

// truncate returns the first limit results (all of them when limit <= 0).
func truncate(results []SearchResult, limit int) []SearchResult {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

// nullableStr maps "" to SQL NULL.
func nullableStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
