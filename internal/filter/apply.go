package filter

import (
	"slices"
	"strings"

	"github.com/shehryarbajwa/browserkube-console/pkg/models"
)

// Apply keeps the rows matching every category of the filter (AND) and, inside a category,
// any of its values (OR). An empty filter keeps everything.
func Apply(f Filter, rows []models.Row) []models.Row {
	if len(f) == 0 {
		return rows
	}
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if Matches(f, r.Session()) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a session passes the filter
func Matches(f Filter, s models.Session) bool {
	for cat, values := range f {
		if !matchCategory(cat, values, s) {
			return false
		}
	}
	return true
}

func matchCategory(cat Category, values []string, s models.Session) bool {
	switch cat {
	case Auto:
		return !s.Manual && slices.Contains(values, "Auto")
	case Manual:
		return s.Manual && slices.Contains(values, "Manual")
	case ScreenResolution:
		return slices.Contains(values, s.ScreenResolution)
	case Category(s.Browser):
		return slices.Contains(values, s.BrowserVersion)
	default:
		return false
	}
}

// Search keeps rows whose name contains the query, case-insensitively
func Search(query string, rows []models.Row) []models.Row {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Session().Name), query) {
			out = append(out, r)
		}
	}
	return out
}
