package catalog

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ekaya-inc/assembly-factory/pkg/models"
)

// Query narrows a catalog listing. Empty fields match everything.
type Query struct {
	Text     string
	Category string
}

// Filter returns the parts whose name or code contains q.Text (case
// insensitive) and whose category equals q.Category. Order is preserved.
func Filter(parts []models.PartDescriptor, q Query) []models.PartDescriptor {
	text := strings.ToLower(strings.TrimSpace(q.Text))
	out := make([]models.PartDescriptor, 0, len(parts))
	for _, p := range parts {
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Code), text) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories returns the distinct categories in lexical order.
func Categories(parts []models.PartDescriptor) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range parts {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

// Suggest returns up to n part codes whose code or name is closest to text
// by edit distance. Candidates further than a third of the text length
// (minimum 2) are not suggested.
func Suggest(parts []models.PartDescriptor, text string, n int) []string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" || n <= 0 {
		return nil
	}
	limit := len(text) / 3
	if limit < 2 {
		limit = 2
	}

	type candidate struct {
		code string
		dist int
	}
	var candidates []candidate
	for _, p := range parts {
		dist := levenshtein.ComputeDistance(text, strings.ToLower(p.Code))
		if d := levenshtein.ComputeDistance(text, strings.ToLower(p.Name)); d < dist {
			dist = d
		}
		if dist <= limit {
			candidates = append(candidates, candidate{code: p.Code, dist: dist})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].code < candidates[j].code
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	codes := make([]string, len(candidates))
	for i, c := range candidates {
		codes[i] = c.code
	}
	return codes
}
