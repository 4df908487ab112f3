// Route registration and go-chi router setup. Public routes (/health,
// /auth/*, /widget/chat) versus JWT-protected dashboard routes (/api/v1/*).
package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/api/handlers"
	apimiddleware "github.com/clariohq/clario/internal/api/middleware"
	domainauth "github.com/clariohq/clario/internal/domain/auth"
	"github.com/clariohq/clario/internal/domain/chat"
	"github.com/clariohq/clario/internal/domain/knowledge"
	"github.com/clariohq/clario/internal/domain/lead"
	"github.com/clariohq/clario/internal/domain/widget"
	"github.com/clariohq/clario/internal/infra/eventbus"
	"github.com/clariohq/clario/internal/infra/llm"
	"github.com/clariohq/clario/internal/infra/ratelimit"
)

// NewRouter creates and configures the chi router with all routes. The
// embedding backfill worker is started here and subscribes to ingest events
// for the lifetime of the process.
func NewRouter(db *sql.DB, provider llm.Provider, limiter ratelimit.Limiter, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apimiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)

	// Shared services. The public chat endpoint and the dashboard API work
	// against the same store, bus and search pipeline.
	bus := eventbus.New()
	store := knowledge.NewStore(db, provider, log)
	searchSvc := knowledge.NewSearchService(store, provider, log)
	ingestSvc := knowledge.NewIngestService(store, bus, log)
	backfill := knowledge.NewBackfillService(store, provider, bus, log)
	go backfill.Run(context.Background())
	go logCapturedLeads(bus, log)

	widgetSvc := widget.NewService(db)
	convStore := chat.NewConversationStore(db)
	leadSvc := lead.NewService(db, bus, log)
	orchestrator := chat.NewOrchestrator(widgetSvc, convStore, searchSvc, leadSvc, limiter, provider, log)

	// ===== PUBLIC ROUTES (no auth required) =====

	// Health check, used by load balancers and probes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	authHandler := handlers.NewAuthHandler(domainauth.NewService(db, log))
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register) // POST /auth/register
		r.Post("/login", authHandler.Login)       // POST /auth/login
	})

	// Widget chat is public: the widget key in the body picks the tenant.
	chatHandler := handlers.NewChatHandler(orchestrator)
	r.Post("/widget/chat", chatHandler.HandleChat)

	// ===== PROTECTED ROUTES (JWT required via AuthMiddleware) =====

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apimiddleware.AuthMiddleware)

		ingestHandler := handlers.NewKnowledgeIngestHandler(ingestSvc)
		searchHandler := handlers.NewKnowledgeSearchHandler(searchSvc)
		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/ingest", ingestHandler.Ingest) // POST /api/v1/knowledge/ingest
			r.Post("/search", searchHandler.Search) // POST /api/v1/knowledge/search
		})

		widgetHandler := handlers.NewWidgetHandler(widgetSvc)
		r.Route("/widgets", func(r chi.Router) {
			r.Post("/", widgetHandler.CreateWidget)       // POST /api/v1/widgets
			r.Get("/", widgetHandler.ListWidgets)         // GET /api/v1/widgets
			r.Get("/{id}", widgetHandler.GetWidget)       // GET /api/v1/widgets/{id}
			r.Put("/{id}", widgetHandler.UpdateWidget)    // PUT /api/v1/widgets/{id}
			r.Delete("/{id}", widgetHandler.DeleteWidget) // DELETE /api/v1/widgets/{id}
		})

		leadHandler := handlers.NewLeadHandler(leadSvc)
		r.Get("/leads", leadHandler.ListLeads) // GET /api/v1/leads?widgetId=
	})

	return r
}

// logCapturedLeads is the notification hook for lead.captured events. It
// runs for the lifetime of the process; integrations (email, CRM sync) would
// subscribe the same way.
func logCapturedLeads(bus eventbus.EventBus, log zerolog.Logger) {
	for evt := range bus.Subscribe(lead.TopicLeadCaptured) {
		payload, ok := evt.Payload.(lead.CapturedEventPayload)
		if !ok {
			continue
		}
		log.Info().
			Str("lead_id", payload.LeadID).
			Str("conversation_id", payload.ConversationID).
			Str("widget_id", payload.WidgetID).
			Msg("lead captured")
	}
}
