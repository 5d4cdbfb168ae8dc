package app

import (
	"strings"

	"github.com/evanschultz/todo/internal/domain"
)

// ParseRoute maps a route such as "#/active" to its filter and the raw token it matched.
// Only a leading "#/" (or a bare "/") is stripped; anything else, "#active" included,
// falls back to the All filter with an empty token.
func ParseRoute(route string) (domain.Filter, string) {
	word, ok := strings.CutPrefix(route, "#/")
	if !ok {
		word, _ = strings.CutPrefix(route, "/")
	}
	switch word {
	case "active":
		return domain.FilterActive, "active"
	case "completed":
		return domain.FilterCompleted, "completed"
	default:
		return domain.FilterAll, ""
	}
}

// RouteFor returns the canonical route for a filter.
func RouteFor(filter domain.Filter) string {
	return "#/" + filter.Token()
}
