// Prompt-context formatting: renders ranked search results into the single
// string injected into the system prompt. Pure textual assembly, no ranking.
package knowledge

import (
	"fmt"
	"strings"
)

// contextPreamble tells the consuming model how to treat the sources.
const contextPreamble = "Use the following knowledge base excerpts as reference material when answering. Only state facts supported by these sources."

// sourceSeparator visually divides consecutive sources in the prompt.
const sourceSeparator = "\n---\n"

// FormatContext renders results into a prompt-ready context block.
// An empty input yields "" so the caller can omit the knowledge section from
// the prompt entirely. Each result becomes a numbered [Source N - url] header
// (the url suffix is dropped when absent) followed by its content, in input
// order.
func FormatContext(results []SearchResult) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextPreamble)
	b.WriteString("\n\n")

	for i, r := range results {
		if i > 0 {
			b.WriteString(sourceSeparator)
		}
		if r.SourceURL != "" {
			fmt.Fprintf(&b, "[Source %d - %s]\n", i+1, r.SourceURL)
		} else {
			fmt.Fprintf(&b, "[Source %d]\n", i+1)
		}
		b.WriteString(r.Content)
	}

	return b.String()
}
