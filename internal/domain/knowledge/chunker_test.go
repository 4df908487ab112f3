package knowledge

import (
	"strings"
	"testing"
)

// words generates "w1 w2 ... wN" for chunker inputs.
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(parts, " ")
}

func TestChunkText_EmptyInput(t *testing.T) {
	t.Parallel()

	if got := ChunkText("", 10, 2); got != nil {
		t.Errorf("ChunkText(\"\") = %v, want nil", got)
	}
	if got := ChunkText("   \n\t  ", 10, 2); got != nil {
		t.Errorf("whitespace-only input = %v, want nil", got)
	}
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	t.Parallel()

	got := ChunkText("just a few words", 10, 2)
	if len(got) != 1 {
		t.Fatalf("chunks = %d, want 1", len(got))
	}
	if got[0] != "just a few words" {
		t.Errorf("chunk = %q, want full text", got[0])
	}
}

func TestChunkText_OverlapAtBoundaries(t *testing.T) {
	t.Parallel()

	text := words(25)
	got := ChunkText(text, 10, 3)

	if len(got) < 2 {
		t.Fatalf("chunks = %d, want at least 2", len(got))
	}
	for i := 0; i+1 < len(got); i++ {
		tail := strings.Fields(got[i])
		head := strings.Fields(got[i+1])
		overlap := tail[len(tail)-3:]
		for j, w := range overlap {
			if head[j] != w {
				t.Errorf("chunk %d/%d boundary: overlap token %d = %q, want %q",
					i, i+1, j, head[j], w)
			}
		}
	}
}

func TestChunkText_ClampsExcessiveOverlap(t *testing.T) {
	t.Parallel()

	// overlap >= chunkSize would never advance; it must be clamped
	got := ChunkText(words(12), 5, 9)
	if len(got) == 0 {
		t.Fatal("expected chunks despite excessive overlap")
	}
	last := got[len(got)-1]
	if !strings.HasSuffix(words(12), strings.Fields(last)[len(strings.Fields(last))-1]) {
		t.Error("last chunk must reach the end of the input")
	}
}

func TestChunkText_CoversAllTokens(t *testing.T) {
	t.Parallel()

	text := words(37)
	got := ChunkText(text, 10, 2)

	joined := strings.Join(got, " ")
	for _, tok := range strings.Fields(text) {
		if !strings.Contains(joined, tok) {
			t.Errorf("token %q missing from chunk output", tok)
		}
	}
}
