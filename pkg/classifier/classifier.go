// Package classifier maps a free-text product description onto the fixed
// category set. Any failure degrades to catalog.Unknown so the caller can fall
// back to the manual menu.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bizzbazzar/bazaar/pkg/catalog"
)

var ErrUnavailable = errors.New("classifier unavailable")

type Classifier interface {
	Classify(ctx context.Context, product, details string) (catalog.Category, error)
}

// Disabled always answers Unknown.
type Disabled struct{}

func (Disabled) Classify(context.Context, string, string) (catalog.Category, error) {
	return catalog.Unknown, nil
}

// Prompt builds the single-turn instruction sent to a language model.
func Prompt(product, details string) string {
	var names []string
	var sb strings.Builder
	for _, c := range catalog.All() {
		if c == catalog.Supermarket {
			continue
		}
		names = append(names, string(c))
		fmt.Fprintf(&sb, "- %s: %s\n", c, catalog.Description(c))
	}
	available := strings.Join(names, ", ")
	return fmt.Sprintf(`Categorize the following product into EXACTLY one of these categories:
%s

Category descriptions:
%s
Product: %q
Additional Info: %q

Rules:
- Return ONLY the category name (lowercase), nothing else
- Must be one of: %s
- If unsure, return "unknown"`, available, sb.String(), product, details, available)
}

var aliases = map[string]catalog.Category{
	"housewear":  catalog.Houseware,
	"stationery": catalog.Stationary,
}

// ParseCategory validates a model answer. Anything outside the category set,
// including supermarket, becomes Unknown.
func ParseCategory(raw string) catalog.Category {
	const junk = "`'\".*: \n\t"
	s := strings.Trim(strings.ToLower(raw), junk)
	if i := strings.IndexAny(s, " \n\t"); i > 0 {
		s = strings.Trim(s[:i], junk)
	}
	if c, ok := aliases[s]; ok {
		return c
	}
	c := catalog.Category(s)
	if c == catalog.Supermarket || !catalog.Valid(c) {
		return catalog.Unknown
	}
	return c
}
