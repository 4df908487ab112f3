// Clario - chat widget backend
// Entry point: serve (default), migrate, version.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clariohq/clario/internal/api"
	"github.com/clariohq/clario/internal/infra/config"
	"github.com/clariohq/clario/internal/infra/llm"
	"github.com/clariohq/clario/internal/infra/logging"
	"github.com/clariohq/clario/internal/infra/ratelimit"
	"github.com/clariohq/clario/internal/infra/sqlite"
	"github.com/clariohq/clario/internal/server"
	"github.com/clariohq/clario/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	switch command {
	case "version", "--version":
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	case "help", "--help":
		printHelp(out)
		return 0
	case "migrate":
		return runMigrate(out)
	case "serve":
		return runServe(out)
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", command) //nolint:errcheck
		printHelp(out)
		return 2
	}
}

func runMigrate(out io.Writer) int {
	cfg := config.Load()
	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(out, "opening database: %v\n", err) //nolint:errcheck
		return 1
	}
	defer db.Close()

	if err := sqlite.MigrateUp(db); err != nil {
		fmt.Fprintf(out, "running migrations: %v\n", err) //nolint:errcheck
		return 1
	}
	fmt.Fprintln(out, "migrations applied") //nolint:errcheck
	return 0
}

func runServe(out io.Writer) int {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Msg("opening database")
		return 1
	}
	defer db.Close()

	if err := sqlite.MigrateUp(db); err != nil {
		log.Error().Err(err).Msg("running migrations")
		return 1
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Error().Err(err).Msg("configuring llm provider")
		return 1
	}

	limiter := buildLimiter(cfg, db, log)
	router := api.NewRouter(db, provider, limiter, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Addr(cfg.Host, cfg.Port), router, log)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return 1
	}
	return 0
}

// buildProvider registers the configured LLM adapters and routes to the one
// named by LLM_PROVIDER.
func buildProvider(cfg config.Config) (llm.Provider, error) {
	providers := map[string]llm.Provider{
		"ollama": llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaChatModel, cfg.LLMTimeout),
	}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = llm.NewOpenAIProvider(
			cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIChatModel, cfg.LLMTimeout)
	}
	return llm.NewRouter(providers, cfg.LLMProvider).Route(context.Background())
}

// buildLimiter prefers the Redis counter when REDIS_ADDR is set; otherwise
// the limiter counts committed messages in the primary store.
func buildLimiter(cfg config.Config, db *sql.DB, log zerolog.Logger) ratelimit.Limiter {
	if cfg.RedisAddr == "" {
		return ratelimit.NewStoreLimiter(db, cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	log.Info().Str("addr", cfg.RedisAddr).Msg("using redis rate limiter")
	return ratelimit.NewRedisLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow)
}

func printHelp(out io.Writer) {
	helpText := `Clario - chat widget backend

Usage:
  clario [command]

Commands:
  serve        Start the API server (default)
  migrate      Apply database migrations and exit
  version      Show version information

Environment:
  CLARIO_HOST, CLARIO_PORT     Listen address (default 0.0.0.0:8080)
  CLARIO_DB                    SQLite database path (default clario.db)
  LLM_PROVIDER                 "ollama" or "openai" (default ollama)
  REDIS_ADDR                   Optional shared rate-limit counter
  JWT_SECRET                   Required for dashboard auth

Examples:
  clario serve
  clario migrate
  clario version`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}
