package orchestrator

import (
	"strings"

	"github.com/phrazzld/copyblocks/internal/domain"
)

// ResolveOrder returns the blocks a bulk run visits: the page override when it
// names any block, otherwise the default order, always led by the seo block.
// Duplicates and blank ids are dropped.
func ResolveOrder(override, defaults []string) []string {
	source := defaults
	if hasAny(override) {
		source = override
	}

	order := make([]string, 0, len(source)+1)
	seen := map[string]bool{domain.SEOMetadataBlock: true}
	order = append(order, domain.SEOMetadataBlock)
	for _, id := range source {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		order = append(order, id)
	}
	return order
}

func hasAny(ids []string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) != "" {
			return true
		}
	}
	return false
}
