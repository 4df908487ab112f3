// kbimport loads a YAML knowledge file into a tenant's knowledge base.
// Chunks that cannot be embedded (provider offline) are stored without
// vectors and picked up by the server's backfill worker later.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clariohq/clario/internal/domain/knowledge"
	"github.com/clariohq/clario/internal/infra/config"
	"github.com/clariohq/clario/internal/infra/eventbus"
	"github.com/clariohq/clario/internal/infra/llm"
	"github.com/clariohq/clario/internal/infra/logging"
	"github.com/clariohq/clario/internal/infra/sqlite"
)

// kbFile is the YAML document shape.
type kbFile struct {
	Tenant  string    `yaml:"tenant"`
	Entries []kbEntry `yaml:"entries"`
}

// kbEntry is one FAQ-style knowledge entry.
type kbEntry struct {
	Question    string   `yaml:"question"`
	Answer      string   `yaml:"answer"`
	Content     string   `yaml:"content"` // free-form alternative to question/answer
	Products    []string `yaml:"products"`
	Language    string   `yaml:"language"`
	SourceTitle string   `yaml:"sourceTitle"`
	SourceURL   string   `yaml:"sourceUrl"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("kbimport", flag.ContinueOnError)
	fs.SetOutput(out)
	file := fs.String("file", "", "YAML knowledge file to import (required)")
	tenant := fs.String("tenant", "", "tenant ID override (defaults to the file's tenant field)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *file == "" {
		fmt.Fprintln(out, "kbimport: -file is required") //nolint:errcheck
		fs.Usage()
		return 2
	}

	doc, err := parseFile(*file)
	if err != nil {
		fmt.Fprintf(out, "kbimport: %v\n", err) //nolint:errcheck
		return 1
	}
	tenantID := *tenant
	if tenantID == "" {
		tenantID = doc.Tenant
	}
	if tenantID == "" {
		fmt.Fprintln(out, "kbimport: no tenant: set -tenant or the file's tenant field") //nolint:errcheck
		return 2
	}

	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(out, "kbimport: opening database: %v\n", err) //nolint:errcheck
		return 1
	}
	defer db.Close()
	if err := sqlite.MigrateUp(db); err != nil {
		fmt.Fprintf(out, "kbimport: running migrations: %v\n", err) //nolint:errcheck
		return 1
	}

	provider := llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel, cfg.OllamaChatModel, cfg.LLMTimeout)
	store := knowledge.NewStore(db, provider, log)
	ingest := knowledge.NewIngestService(store, eventbus.New(), log)

	chunks, err := ingest.IngestBatch(context.Background(), buildInputs(tenantID, doc.Entries))
	if err != nil {
		fmt.Fprintf(out, "kbimport: %v\n", err) //nolint:errcheck
		return 1
	}

	fmt.Fprintf(out, "imported %d entries (%d chunks) for tenant %s\n", //nolint:errcheck
		len(doc.Entries), chunks, tenantID)
	return 0
}

func parseFile(path string) (*kbFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc kbFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(doc.Entries) == 0 {
		return nil, fmt.Errorf("%s contains no entries", path)
	}
	return &doc, nil
}

// buildInputs flattens the YAML entries into ingest inputs. Question/answer
// pairs become one "Q: ... A: ..." passage so retrieval sees both sides.
func buildInputs(tenantID string, entries []kbEntry) []knowledge.IngestInput {
	inputs := make([]knowledge.IngestInput, 0, len(entries))
	for _, e := range entries {
		content := e.Content
		if content == "" && e.Question != "" {
			content = fmt.Sprintf("Q: %s\nA: %s", strings.TrimSpace(e.Question), strings.TrimSpace(e.Answer))
		}
		inputs = append(inputs, knowledge.IngestInput{
			TenantID:    tenantID,
			Products:    e.Products,
			Language:    e.Language,
			Content:     content,
			SourceTitle: e.SourceTitle,
			SourceURL:   e.SourceURL,
		})
	}
	return inputs
}
