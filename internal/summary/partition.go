package summary

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/Kerhoff/ShoppingBoT/internal/models"
)

// Partition splits items into pending and purchased, each sorted by name
// using the collation rules of lang. Items with equal names keep their
// input order.
func Partition(items []*models.ShoppingItem, lang language.Tag) (pending, purchased []*models.ShoppingItem) {
	pending = []*models.ShoppingItem{}
	purchased = []*models.ShoppingItem{}
	for _, item := range items {
		if item.Purchased {
			purchased = append(purchased, item)
		} else {
			pending = append(pending, item)
		}
	}

	// Collators are not safe for concurrent use.
	c := collate.New(lang)
	byName := func(list []*models.ShoppingItem) {
		sort.SliceStable(list, func(i, j int) bool {
			return c.CompareString(list[i].Name, list[j].Name) < 0
		})
	}
	byName(pending)
	byName(purchased)
	return pending, purchased
}

// Ordered returns pending items followed by purchased items, the order in
// which lists are displayed and numbered.
func Ordered(items []*models.ShoppingItem, lang language.Tag) []*models.ShoppingItem {
	pending, purchased := Partition(items, lang)
	return append(pending, purchased...)
}

// Overview is a display ready view of one list.
type Overview struct {
	Pending   []*models.ShoppingItem `json:"pending"`
	Purchased []*models.ShoppingItem `json:"purchased"`
	Summary   Summary                `json:"summary"`
}

// NewOverview partitions items and computes their summary.
func NewOverview(items []*models.ShoppingItem, lang language.Tag) Overview {
	pending, purchased := Partition(items, lang)
	return Overview{
		Pending:   pending,
		Purchased: purchased,
		Summary:   Summarize(items),
	}
}
