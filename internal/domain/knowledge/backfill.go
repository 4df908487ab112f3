// Embedding backfill: upgrades chunks stored without vectors (provider was
// down at ingest time) to the vector search path. Runs as a background
// subscriber of knowledge.ingested events.
package knowledge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/infra/eventbus"
	"github.com/clariohq/clario/internal/infra/llm"
)

// backfillBatchSize bounds how many chunks each embedding call carries.
const backfillBatchSize = 50

// BackfillService embeds chunks that were ingested without vectors.
type BackfillService struct {
	store    *Store
	provider llm.Provider
	bus      eventbus.EventBus
	log      zerolog.Logger
}

// NewBackfillService creates a BackfillService.
func NewBackfillService(store *Store, provider llm.Provider, bus eventbus.EventBus, log zerolog.Logger) *BackfillService {
	return &BackfillService{store: store, provider: provider, bus: bus, log: log}
}

// Backfill embeds all unembedded chunks for the tenant in batches and returns
// how many were embedded. Chunks that already carry a vector are never
// re-embedded: both the selection query and the conditional update skip them.
func (s *BackfillService) Backfill(ctx context.Context, tenantID string) (int, error) {
	total := 0
	for {
		chunks, err := s.store.ListUnembedded(ctx, tenantID, backfillBatchSize)
		if err != nil {
			return total, fmt.Errorf("knowledge: backfill list: %w", err)
		}
		if len(chunks) == 0 {
			return total, nil
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		resp, err := s.provider.Embed(ctx, llm.EmbedRequest{Texts: texts})
		if err != nil {
			return total, fmt.Errorf("knowledge: backfill embed: %w", err)
		}
		if len(resp.Embeddings) != len(chunks) {
			return total, fmt.Errorf("knowledge: backfill embed returned %d vectors for %d chunks",
				len(resp.Embeddings), len(chunks))
		}

		for i, c := range chunks {
			if err := s.store.SetEmbedding(ctx, tenantID, c.ID, resp.Embeddings[i]); err != nil {
				return total, err
			}
			total++
		}
	}
}

// Run subscribes to knowledge.ingested and backfills the affected tenant
// after each ingest. Blocks until ctx is cancelled; intended to be launched
// as a goroutine at startup. Backfill errors are logged, not fatal: the next
// ingest event retries the partition.
func (s *BackfillService) Run(ctx context.Context) {
	events := s.bus.Subscribe(TopicKnowledgeIngested)
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			payload, ok := evt.Payload.(IngestedEventPayload)
			if !ok {
				continue
			}
			n, err := s.Backfill(ctx, payload.TenantID)
			if err != nil {
				s.log.Warn().Err(err).Str("tenant_id", payload.TenantID).
					Msg("embedding backfill incomplete")
				continue
			}
			if n > 0 {
				s.log.Info().Str("tenant_id", payload.TenantID).Int("embedded", n).
					Msg("embedding backfill complete")
			}
		}
	}
}
