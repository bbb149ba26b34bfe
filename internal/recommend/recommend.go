// Package recommend matches diagnosis keywords against the parts catalog.
package recommend

import (
	"strings"

	"autodiag/pkg/domain"
)

// maxResults caps how many recommendations a single turn surfaces.
const maxResults = 3

// catalog is the fixed in-memory parts list. A real deployment would query
// the product database instead.
var catalog = []domain.Product{
	{Title: "Oil Filter Premium", Price: 12.99, Category: "Filters"},
	{Title: "Synthetic Oil 5W-30", Price: 32.99, Category: "Fluids"},
	{Title: "Brake Pads (Front)", Price: 45.99, Category: "Brakes"},
	{Title: "Air Filter", Price: 15.99, Category: "Filters"},
	{Title: "Spark Plugs Set", Price: 28.99, Category: "Ignition"},
}

// Matcher filters a catalog by keyword overlap with title or category.
type Matcher struct {
	products []domain.Product
}

// NewMatcher returns a matcher over the built-in catalog.
func NewMatcher() *Matcher {
	return &Matcher{products: catalog}
}

// NewMatcherWithCatalog returns a matcher over a custom product list.
func NewMatcherWithCatalog(products []domain.Product) *Matcher {
	return &Matcher{products: products}
}

// Match returns up to three products whose lower-cased title or category
// contains any of the keywords, in catalog order. Empty keywords match
// nothing.
func (m *Matcher) Match(keywords []string) []domain.Product {
	if len(keywords) == 0 {
		return nil
	}
	var matches []domain.Product
	for _, p := range m.products {
		title := strings.ToLower(p.Title)
		category := strings.ToLower(p.Category)
		for _, kw := range keywords {
			if strings.Contains(title, kw) || strings.Contains(category, kw) {
				matches = append(matches, p)
				break
			}
		}
		if len(matches) == maxResults {
			break
		}
	}
	return matches
}
