package search

import (
	"errors"
	"math/rand"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

func sampleStock() []models.StockItem {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.StockItem{
		{ID: 1, ProductName: "Urea", CompanyName: "IFFCO", Quantity: 120, DateAdded: models.NewTimestamp(base)},
		{ID: 2, ProductName: "DAP", CompanyName: "Coromandel", Quantity: 4, DateAdded: models.NewTimestamp(base.Add(48 * time.Hour))},
		{ID: 3, ProductName: "Potash", CompanyName: "IPL", Quantity: 0, DateAdded: models.NewTimestamp(base.Add(24 * time.Hour))},
		{ID: 4, ProductName: "Urea Gold", CompanyName: "Chambal", Quantity: 9, DateAdded: models.NewTimestamp(base.Add(72 * time.Hour))},
		{ID: 5, ProductName: "Zinc Sulphate", CompanyName: "Tata Rallis", Quantity: 35, DateAdded: models.NewTimestamp(base.Add(12 * time.Hour))},
	}
}

func ids(items []models.StockItem) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestFilter_TextAndCategory(t *testing.T) {
	cases := []struct {
		name  string
		query Query
		want  []int64
	}{
		{"product substring", Query{Text: "urea", Category: CategoryAll, Sort: SortName}, []int64{1, 4}},
		{"company substring", Query{Text: "TATA", Category: CategoryAll, Sort: SortName}, []int64{5}},
		{"concatenation", Query{Text: "urea iffco", Category: CategoryAll, Sort: SortName}, []int64{1}},
		{"low stock", Query{Category: CategoryLowStock, Sort: SortQuantity}, []int64{4, 2}},
		{"low stock with threshold", Query{Category: CategoryLowStock, Sort: SortQuantity, Threshold: 40}, []int64{5, 4, 2}},
		{"out of stock", Query{Category: CategoryOutOfStock, Sort: SortName}, []int64{3}},
		{"in stock by date", Query{Category: CategoryInStock, Sort: SortDate}, []int64{4, 2, 5, 1}},
		{"company order", Query{Category: CategoryAll, Sort: SortCompany}, []int64{4, 2, 1, 3, 5}},
	}
	for _, tc := range cases {
		if got := ids(Filter(sampleStock(), tc.query)); !slices.Equal(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestFilter_CountMatchesConjunctionRegardlessOfOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	terms := []string{"", "a", "ur", "co", "tata", "x"}
	categories := []Category{CategoryAll, CategoryInStock, CategoryLowStock, CategoryOutOfStock}

	for round := 0; round < 40; round++ {
		items := sampleStock()
		rng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		q := Query{Text: terms[rng.Intn(len(terms))], Category: categories[rng.Intn(len(categories))], Sort: SortQuantity}

		want := 0
		for _, item := range items {
			text := strings.ToLower(item.ProductName + " " + item.CompanyName)
			if !strings.Contains(text, q.Text) {
				continue
			}
			switch q.Category {
			case CategoryInStock:
				if item.Quantity <= 0 {
					continue
				}
			case CategoryLowStock:
				if item.Quantity <= 0 || item.Quantity >= 10 {
					continue
				}
			case CategoryOutOfStock:
				if item.Quantity != 0 {
					continue
				}
			}
			want++
		}

		first := Filter(items, q)
		second := Filter(sampleStock(), q)
		if len(first) != want || len(second) != want {
			t.Fatalf("round %d %+v: got %d/%d want %d", round, q, len(first), len(second), want)
		}
	}
}

func TestFilter_LocaleAwareNames(t *testing.T) {
	items := []models.StockItem{
		{ID: 1, ProductName: "Zinc"},
		{ID: 2, ProductName: "éclair"},
		{ID: 3, ProductName: "apple"},
		{ID: 4, ProductName: "Banana"},
	}
	if got := ids(Filter(items, Query{Category: CategoryAll, Sort: SortName})); !slices.Equal(got, []int64{3, 4, 2, 1}) {
		t.Fatalf("unexpected collation order %v", got)
	}
}

func TestResults_Restartable(t *testing.T) {
	seq := Results(sampleStock(), Query{Text: "urea", Category: CategoryAll, Sort: SortName})
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 2 || b != 2 {
		t.Fatalf("expected 2 results twice, got %d and %d", a, b)
	}
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery("dap", "", "")
	if err != nil || q.Category != CategoryAll || q.Sort != SortName {
		t.Fatalf("defaults: %+v %v", q, err)
	}
	if _, err := ParseQuery("", "cheap", "name"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseQuery("", "all", "price"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPresetsAndClear(t *testing.T) {
	q, ok := Preset("low-stock")
	if !ok || q.Category != CategoryLowStock || q.Sort != SortQuantity || q.Text != "" {
		t.Fatalf("low-stock preset %+v", q)
	}
	if q, _ := Preset("recent"); q.Sort != SortDate || q.Category != CategoryAll {
		t.Fatalf("recent preset %+v", q)
	}
	if _, ok := Preset("cheapest"); ok {
		t.Fatalf("unknown preset accepted")
	}
	if c := Clear(); c.Category != CategoryAll || c.Sort != SortName || c.Text != "" {
		t.Fatalf("clear %+v", c)
	}
}

func TestSuggest(t *testing.T) {
	got := Suggest(sampleStock(), "UREA", 1)
	if len(got) != 1 || got[0].Value != "Urea|IFFCO" || got[0].Label != "Urea - IFFCO" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
	if got := Suggest(sampleStock(), "potash", 5); len(got) != 0 {
		t.Fatalf("out-of-stock items must not be suggested: %+v", got)
	}
}

func TestHighlight(t *testing.T) {
	got := Highlight("Urea Gold urea", "UREA")
	want := []Segment{{Text: "Urea", Match: true}, {Text: " Gold "}, {Text: "urea", Match: true}}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v", got)
	}
	if got := Highlight("DAP", ""); len(got) != 1 || got[0].Match {
		t.Fatalf("empty term: %+v", got)
	}
}
