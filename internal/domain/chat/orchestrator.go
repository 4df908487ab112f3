package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/domain/knowledge"
	"github.com/clariohq/clario/internal/domain/lead"
	"github.com/clariohq/clario/internal/domain/widget"
	"github.com/clariohq/clario/internal/infra/llm"
	"github.com/clariohq/clario/internal/infra/ratelimit"
)

// Turn-level errors surfaced to the API layer. Everything else (retrieval,
// lead capture) degrades inside the orchestrator.
var (
	ErrValidation  = errors.New("chat: invalid request")
	ErrRateLimited = errors.New("chat: rate limit exceeded")
	ErrGeneration  = errors.New("chat: response generation failed")
)

// historyLimit bounds how many prior messages reach the LLM.
const historyLimit = 10

// leadCaptureTimeout bounds the background capture after the response is out.
const leadCaptureTimeout = 10 * time.Second

// nudgeInstruction is appended to the system prompt once the visitor has sent
// enough messages without leaving contact information.
const nudgeInstruction = "If it fits the conversation naturally, ask the visitor for an email address or phone number so the team can follow up."

// TurnInput is the chat-turn entry point consumed from the API layer.
type TurnInput struct {
	WidgetKey      string
	Message        string
	VisitorID      string
	ConversationID string // optional; empty starts a new conversation
}

// TurnOutput is one completed AI turn.
type TurnOutput struct {
	ConversationID string
	Message        string
	Timestamp      time.Time
}

// Orchestrator composes retrieval, persistence, generation and lead capture
// into one chat turn.
type Orchestrator struct {
	widgets  *widget.Service
	convs    *ConversationStore
	search   *knowledge.SearchService
	leads    *lead.Service
	limiter  ratelimit.Limiter
	provider llm.Provider
	log      zerolog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	widgets *widget.Service,
	convs *ConversationStore,
	search *knowledge.SearchService,
	leads *lead.Service,
	limiter ratelimit.Limiter,
	provider llm.Provider,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		widgets:  widgets,
		convs:    convs,
		search:   search,
		leads:    leads,
		limiter:  limiter,
		provider: provider,
		log:      log,
	}
}

// HandleTurn runs one chat turn. The user message is persisted before
// generation, so an LLM failure or client disconnect never loses it.
// Lead capture runs in the background after the response is assembled and
// cannot affect the returned result.
func (o *Orchestrator) HandleTurn(ctx context.Context, input TurnInput) (*TurnOutput, error) {
	message := strings.TrimSpace(input.Message)
	switch {
	case input.WidgetKey == "":
		return nil, fmt.Errorf("%w: widgetKey is required", ErrValidation)
	case message == "":
		return nil, fmt.Errorf("%w: message is required", ErrValidation)
	case input.VisitorID == "":
		return nil, fmt.Errorf("%w: visitorId is required", ErrValidation)
	}

	w, err := o.widgets.ResolveByKey(ctx, input.WidgetKey)
	if err != nil {
		return nil, err
	}

	conv, err := o.resolveConversation(ctx, w.ID, input)
	if err != nil {
		return nil, err
	}

	if err := o.checkRateLimit(ctx, conv.ID); err != nil {
		return nil, err
	}

	// write-before-generate: the visitor's message survives any failure below
	if _, err := o.convs.AppendMessage(ctx, conv.ID, RoleUser, message); err != nil {
		return nil, err
	}

	history, err := o.convs.History(ctx, conv.ID, historyLimit)
	if err != nil {
		return nil, err
	}

	systemPrompt := o.buildSystemPrompt(ctx, w, conv, message)

	resp, err := o.provider.ChatCompletion(ctx, llm.ChatRequest{
		Messages: promptMessages(systemPrompt, history),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	assistant, err := o.convs.AppendMessage(ctx, conv.ID, RoleAssistant, resp.Content)
	if err != nil {
		return nil, err
	}
	if err := o.convs.TouchLastMessage(ctx, conv.ID); err != nil {
		o.log.Warn().Err(err).Str("conversation_id", conv.ID).
			Msg("failed to bump last_message_at")
	}

	o.captureLeadAsync(ctx, conv, w.ID, message)

	return &TurnOutput{
		ConversationID: conv.ID,
		Message:        assistant.Content,
		Timestamp:      assistant.CreatedAt,
	}, nil
}

// resolveConversation loads an existing conversation (checking widget
// ownership) or starts a new one.
func (o *Orchestrator) resolveConversation(ctx context.Context, widgetID string, input TurnInput) (*Conversation, error) {
	if input.ConversationID != "" {
		return o.convs.GetForWidget(ctx, widgetID, input.ConversationID)
	}
	return o.convs.Create(ctx, widgetID, input.VisitorID)
}

// checkRateLimit consults the limiter. A limiter failure fails open: losing
// rate limiting briefly is better than dropping every chat turn.
func (o *Orchestrator) checkRateLimit(ctx context.Context, conversationID string) error {
	allowed, err := o.limiter.Allow(ctx, conversationID)
	if err != nil {
		o.log.Warn().Err(err).Str("conversation_id", conversationID).
			Msg("rate limiter unavailable, allowing turn")
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// buildSystemPrompt assembles widget instructions, retrieved knowledge and
// the optional contact-info nudge. Retrieval degradation leaves the knowledge
// section out; a prompt-assembly problem never fails the turn.
func (o *Orchestrator) buildSystemPrompt(ctx context.Context, w *widget.Widget, conv *Conversation, message string) string {
	var parts []string

	instructions := strings.TrimSpace(w.Instructions)
	if instructions == "" {
		instructions = "You are a helpful assistant answering visitor questions for this business."
	}
	parts = append(parts, instructions)

	var languages []string
	if w.Language != "" {
		languages = []string{w.Language}
	}
	results := o.search.Search(ctx, knowledge.SearchInput{
		Query:        message,
		TenantID:     w.TenantID,
		Products:     w.Products,
		Languages:    languages,
		BoostPricing: pricingIntent(message),
	})
	if knowledgeContext := knowledge.FormatContext(results); knowledgeContext != "" {
		parts = append(parts, knowledgeContext)
	}

	if !conv.LeadCaptured {
		count, err := o.convs.CountUserMessages(ctx, conv.ID)
		if err != nil {
			o.log.Warn().Err(err).Str("conversation_id", conv.ID).
				Msg("nudge threshold check failed")
		} else if count >= w.NudgeThreshold {
			parts = append(parts, nudgeInstruction)
		}
	}

	return strings.Join(parts, "\n\n")
}

// captureLeadAsync runs lead capture in the background, detached from the
// request context so a client disconnect cannot cancel the write.
func (o *Orchestrator) captureLeadAsync(ctx context.Context, conv *Conversation, widgetID, message string) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), leadCaptureTimeout)
	go func() {
		defer cancel()
		o.leads.Capture(bg, lead.CaptureInput{
			ConversationID: conv.ID,
			WidgetID:       widgetID,
			LeadCaptured:   conv.LeadCaptured,
			Message:        message,
		})
	}()
}

// promptMessages prepends the system prompt to the chronological history.
func promptMessages(systemPrompt string, history []Message) []llm.Message {
	msgs := make([]llm.Message, 0, len(history)+1)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	return msgs
}

// pricingIntent is the heuristic that turns on the pricing boost for queries
// that look like cost questions.
func pricingIntent(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range []string{"price", "pricing", "cost", "how much", "expensive", "cheap", "$"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
