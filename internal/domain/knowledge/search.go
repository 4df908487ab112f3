// Knowledge search service: the central ranking pipeline invoked on every
// chat turn. Embeds the query, over-fetches candidates, classifies each one
// into a topic, optionally boosts pricing content, and returns the top
// results. Retrieval failure never aborts a chat turn: every error path
// degrades to an empty result set.
package knowledge

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/infra/llm"
)

const (
	// DefaultMinSimilarity is the similarity floor applied when the caller
	// does not set one.
	DefaultMinSimilarity = 0.7

	// DefaultSearchLimit bounds how many snippets reach the prompt.
	DefaultSearchLimit = 4

	// pricingBoostFactor is applied to candidates classified as "Pricing"
	// when the caller requests the boost. Boosted similarity caps at 1.0.
	pricingBoostFactor = 1.5

	// overFetchFactor gives the re-ranking step headroom beyond the limit.
	overFetchFactor = 2
)

// SearchInput carries the parameters for one retrieval call.
type SearchInput struct {
	Query         string
	TenantID      string
	Products      []string
	Languages     []string
	MinSimilarity float64 // 0 → DefaultMinSimilarity
	Limit         int     // 0 → DefaultSearchLimit
	BoostPricing  bool
}

// SearchService orchestrates retrieval over the Store and the embedding
// provider.
type SearchService struct {
	store    *Store
	provider llm.Provider
	log      zerolog.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(store *Store, provider llm.Provider, log zerolog.Logger) *SearchService {
	return &SearchService{store: store, provider: provider, log: log}
}

// Search runs the ranking pipeline and returns at most input.Limit results,
// ordered by (possibly boosted) similarity descending with stable ties.
//
// It never returns an error: an empty or too-short query yields an empty
// set, and provider/store failures are logged and degrade to an empty set
// so the chat turn proceeds without knowledge context.
func (s *SearchService) Search(ctx context.Context, input SearchInput) []SearchResult {
	if len(extractTerms(input.Query)) == 0 {
		return nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	minSim := input.MinSimilarity
	if minSim <= 0 {
		minSim = DefaultMinSimilarity
	}

	candidates := s.fetchCandidates(ctx, input, limit*overFetchFactor, minSim)
	if len(candidates) == 0 {
		return nil
	}

	for i := range candidates {
		title, url := classifyTopic(candidates[i].Content)
		candidates[i].SourceTitle = title
		if candidates[i].SourceURL == "" {
			candidates[i].SourceURL = url
		}
	}

	if input.BoostPricing {
		for i := range candidates {
			if candidates[i].SourceTitle == "Pricing" {
				boosted := candidates[i].Similarity * pricingBoostFactor
				if boosted > 1.0 {
					boosted = 1.0
				}
				candidates[i].Similarity = boosted
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	return truncate(candidates, limit)
}

// fetchCandidates picks the retrieval path. Tenants with embedded chunks use
// vector search; a partition with no embeddings yet falls back to keyword
// search permanently (the backfill worker upgrades it once vectors land).
func (s *SearchService) fetchCandidates(ctx context.Context, input SearchInput, fetch int, minSim float64) []SearchResult {
	hasVectors, err := s.store.HasEmbeddings(ctx, input.TenantID)
	if err != nil {
		s.log.Error().Err(err).Str("tenant_id", input.TenantID).
			Msg("knowledge search degraded: embedding index check failed")
		return nil
	}

	if !hasVectors {
		results, kwErr := s.store.SearchByKeyword(ctx, input.Query, KeywordFilter{
			TenantID:  input.TenantID,
			Products:  input.Products,
			Languages: input.Languages,
			Limit:     fetch,
		})
		if kwErr != nil {
			s.log.Error().Err(kwErr).Str("tenant_id", input.TenantID).
				Msg("knowledge search degraded: keyword search failed")
			return nil
		}
		return results
	}

	resp, err := s.provider.Embed(ctx, llm.EmbedRequest{Texts: []string{input.Query}})
	if err != nil || len(resp.Embeddings) == 0 {
		s.log.Warn().Err(err).Str("tenant_id", input.TenantID).
			Msg("knowledge search degraded: query embedding failed")
		return nil
	}

	results, err := s.store.SearchBySimilarity(ctx, resp.Embeddings[0], SimilarityFilter{
		TenantID:      input.TenantID,
		Products:      input.Products,
		Languages:     input.Languages,
		MinSimilarity: minSim,
		Limit:         fetch,
	})
	if err != nil {
		s.log.Error().Err(err).Str("tenant_id", input.TenantID).
			Msg("knowledge search degraded: similarity search failed")
		return nil
	}
	return results
}
