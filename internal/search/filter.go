package search

import (
	"cmp"
	"iter"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

// Matches reports whether item satisfies both the text and the category of q.
func Matches(item models.StockItem, q Query) bool {
	return matchesText(item, q.normalizedText()) && matchesCategory(item, q)
}

func matchesText(item models.StockItem, term string) bool {
	if term == "" {
		return true
	}
	product := strings.ToLower(item.ProductName)
	company := strings.ToLower(item.CompanyName)
	return strings.Contains(product, term) ||
		strings.Contains(company, term) ||
		strings.Contains(product+" "+company, term)
}

func matchesCategory(item models.StockItem, q Query) bool {
	switch q.Category {
	case CategoryInStock:
		return item.Quantity > 0
	case CategoryLowStock:
		return item.Quantity > 0 && item.Quantity < q.lowStockThreshold()
	case CategoryOutOfStock:
		return item.Quantity == 0
	default:
		return true
	}
}

// Filter returns the matching items in q's order. items is not modified.
func Filter(items []models.StockItem, q Query) []models.StockItem {
	out := make([]models.StockItem, 0, len(items))
	for _, item := range items {
		if Matches(item, q) {
			out = append(out, item)
		}
	}
	sortItems(out, q.Sort)
	return out
}

// Results is the lazy form of Filter. Each range over the sequence
// recomputes from items.
func Results(items []models.StockItem, q Query) iter.Seq[models.StockItem] {
	return func(yield func(models.StockItem) bool) {
		for _, item := range Filter(items, q) {
			if !yield(item) {
				return
			}
		}
	}
}

func sortItems(items []models.StockItem, key SortKey) {
	switch key {
	case SortName, SortCompany:
		// Collators keep per-instance buffers.
		col := collate.New(language.English, collate.IgnoreCase)
		field := func(s models.StockItem) string { return s.ProductName }
		if key == SortCompany {
			field = func(s models.StockItem) string { return s.CompanyName }
		}
		slices.SortStableFunc(items, func(a, b models.StockItem) int {
			return col.CompareString(field(a), field(b))
		})
	case SortQuantity:
		slices.SortStableFunc(items, func(a, b models.StockItem) int {
			return cmp.Compare(b.Quantity, a.Quantity)
		})
	case SortDate:
		slices.SortStableFunc(items, func(a, b models.StockItem) int {
			return b.DateAdded.Compare(a.DateAdded.Time)
		})
	}
}

// Suggestion is a live completion for the sale and search inputs.
type Suggestion struct {
	ID       int64  `json:"id"`
	Value    string `json:"value"`
	Label    string `json:"label"`
	Quantity int    `json:"quantity"`
}

// Suggest returns up to limit in-stock items matching text, ordered by name.
func Suggest(items []models.StockItem, text string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 8
	}
	term := strings.ToLower(strings.TrimSpace(text))
	if term == "" {
		return []Suggestion{}
	}

	matched := Filter(items, Query{Text: term, Category: CategoryInStock, Sort: SortName})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]Suggestion, 0, len(matched))
	for _, item := range matched {
		out = append(out, Suggestion{
			ID:       item.ID,
			Value:    item.Key().String(),
			Label:    item.ProductName + " - " + item.CompanyName,
			Quantity: item.Quantity,
		})
	}
	return out
}

// Segment is a piece of highlighted text.
type Segment struct {
	Text  string `json:"text"`
	Match bool   `json:"match,omitempty"`
}

// Highlight splits text around case-insensitive occurrences of term.
func Highlight(text, term string) []Segment {
	term = strings.ToLower(strings.TrimSpace(term))
	lower := strings.ToLower(text)
	if term == "" || len(lower) != len(text) {
		return []Segment{{Text: text}}
	}

	segments := make([]Segment, 0, 3)
	for {
		i := strings.Index(lower, term)
		if i < 0 {
			break
		}
		if i > 0 {
			segments = append(segments, Segment{Text: text[:i]})
		}
		segments = append(segments, Segment{Text: text[i : i+len(term)], Match: true})
		text, lower = text[i+len(term):], lower[i+len(term):]
	}
	if text != "" {
		segments = append(segments, Segment{Text: text})
	}
	return segments
}

// Row is the highlighted rendering of one result item.
type Row struct {
	ID      int64     `json:"id"`
	Product []Segment `json:"product"`
	Company []Segment `json:"company"`
}

// HighlightRows marks term inside the product and company of each item.
func HighlightRows(items []models.StockItem, term string) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, Row{
			ID:      item.ID,
			Product: Highlight(item.ProductName, term),
			Company: Highlight(item.CompanyName, term),
		})
	}
	return rows
}
