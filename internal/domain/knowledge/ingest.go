// Ingestion pipeline: turns administrative knowledge submissions into stored,
// embedded chunks and notifies the backfill worker through the event bus.
package knowledge

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/infra/eventbus"
)

// TopicKnowledgeIngested is published after each successful ingest so the
// backfill worker can embed any chunks that were stored without vectors.
const TopicKnowledgeIngested = "knowledge.ingested"

// IngestedEventPayload identifies the partition the ingest wrote into.
type IngestedEventPayload struct {
	TenantID   string
	ChunkCount int
}

// IngestInput is one administrative knowledge submission. Content longer
// than the chunk window is split into multiple chunks.
type IngestInput struct {
	TenantID    string
	Products    []string
	Language    string
	Content     string
	SourceTitle string
	SourceURL   string
}

// IngestService chunks and upserts submitted knowledge.
type IngestService struct {
	store *Store
	bus   eventbus.EventBus
	log   zerolog.Logger
}

// NewIngestService creates an IngestService.
func NewIngestService(store *Store, bus eventbus.EventBus, log zerolog.Logger) *IngestService {
	return &IngestService{store: store, bus: bus, log: log}
}

// Ingest splits the submission into chunks and upserts each one, then
// publishes a knowledge.ingested event. Returns the number of chunks written.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (int, error) {
	if input.TenantID == "" {
		return 0, ErrTenantRequired
	}

	chunks := ChunkText(input.Content, DefaultChunkSize, DefaultChunkOverlap)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("knowledge: nothing to ingest")
	}

	for _, chunk := range chunks {
		err := s.store.UpsertChunk(ctx, UpsertChunkInput{
			TenantID:    input.TenantID,
			Products:    input.Products,
			Language:    input.Language,
			Content:     chunk,
			SourceTitle: input.SourceTitle,
			SourceURL:   input.SourceURL,
		})
		if err != nil {
			return 0, fmt.Errorf("knowledge: ingesting chunk: %w", err)
		}
	}

	s.bus.Publish(TopicKnowledgeIngested, IngestedEventPayload{
		TenantID:   input.TenantID,
		ChunkCount: len(chunks),
	})

	s.log.Info().Str("tenant_id", input.TenantID).Int("chunks", len(chunks)).
		Msg("knowledge ingested")
	return len(chunks), nil
}

// IngestBatch ingests multiple submissions, stopping at the first failure.
// Returns the total number of chunks written across all inputs so far.
func (s *IngestService) IngestBatch(ctx context.Context, inputs []IngestInput) (int, error) {
	total := 0
	for i, input := range inputs {
		n, err := s.Ingest(ctx, input)
		total += n
		if err != nil {
			return total, fmt.Errorf("knowledge: batch item %d: %w", i, err)
		}
	}
	return total, nil
}
