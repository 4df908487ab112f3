package knowledge

import (
	"strings"
	"testing"
)

func TestFormatContext_EmptyInput(t *testing.T) {
	t.Parallel()

	if got := FormatContext(nil); got != "" {
		t.Errorf("FormatContext(nil) = %q, want empty string", got)
	}
	if got := FormatContext([]SearchResult{}); got != "" {
		t.Errorf("FormatContext([]) = %q, want empty string", got)
	}
}

func TestFormatContext_NumbersSourcesInOrder(t *testing.T) {
	t.Parallel()

	results := []SearchResult{
		{Content: "first snippet", SourceURL: "/pricing"},
		{Content: "second snippet"},
		{Content: "third snippet", SourceURL: "/faq#security"},
	}
	got := FormatContext(results)

	if !strings.HasPrefix(got, contextPreamble) {
		t.Error("output must start with the instruction preamble")
	}
	for _, header := range []string{"[Source 1 - /pricing]", "[Source 2]", "[Source 3 - /faq#security]"} {
		if !strings.Contains(got, header) {
			t.Errorf("output missing header %q", header)
		}
	}

	// each content appears exactly once, in input order
	lastIdx := -1
	for _, r := range results {
		if strings.Count(got, r.Content) != 1 {
			t.Errorf("content %q must appear exactly once", r.Content)
		}
		idx := strings.Index(got, r.Content)
		if idx <= lastIdx {
			t.Errorf("content %q out of order", r.Content)
		}
		lastIdx = idx
	}

	if strings.Count(got, sourceSeparator) != 2 {
		t.Errorf("separator count = %d, want 2", strings.Count(got, sourceSeparator))
	}
}

func TestFormatContext_OmitsURLSuffixWhenAbsent(t *testing.T) {
	t.Parallel()

	got := FormatContext([]SearchResult{{Content: "no url here"}})
	if strings.Contains(got, " - ]") {
		t.Errorf("empty url must drop the suffix entirely: %q", got)
	}
	if !strings.Contains(got, "[Source 1]\n") {
		t.Errorf("expected bare [Source 1] header: %q", got)
	}
}
