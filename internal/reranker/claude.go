package reranker

import (
	"fmt"
	"strings"

	"github.com/hanlab/memoryd/internal/repository"
)

// maxExcerptLen bounds each candidate excerpt in the rerank prompt to keep
// it inside the external agent's context window.
const maxExcerptLen = 300

// BuildRerankPrompt renders a deterministic prompt asking an external
// reasoning agent to select and order the most relevant candidates. The
// prompt repeats the query verbatim, lists each candidate by zero-based
// index with a short excerpt, and states the exact expected answer shape:
// a bracketed index list ordered by relevance, at most limit entries.
// The builder performs no ranking itself.
func BuildRerankPrompt(query string, candidates []*repository.Memory, limit int) string {
	var sb strings.Builder

	sb.WriteString("You are re-ranking memory search results. Select the candidates most relevant to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	sb.WriteString("Candidates:\n")
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("[%d] %s: %s\n", i, c.Title, excerpt(c.Content)))
	}

	sb.WriteString(fmt.Sprintf(`
Reply with ONLY a bracketed list of candidate indices ordered from most to
least relevant, at most %d entries, e.g. [0, 3, 7].
No explanation, no other text.`, limit))

	return sb.String()
}

// ApplySelection maps an externally produced index selection back onto the
// candidate pool: out-of-range indices are dropped, duplicates keep their
// first occurrence, the caller-given order is preserved, and the result is
// capped at limit. Nil candidates (records deleted between the two phases)
// are skipped without shifting the index mapping.
func ApplySelection(candidates []*repository.Memory, selected []int, limit int) []*repository.Memory {
	results := []*repository.Memory{}
	if limit <= 0 {
		return results
	}

	seen := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= len(candidates) || candidates[idx] == nil {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		results = append(results, candidates[idx])
		if len(results) == limit {
			break
		}
	}

	return results
}

func excerpt(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) > maxExcerptLen {
		content = content[:maxExcerptLen] + "..."
	}
	return content
}
