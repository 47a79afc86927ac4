// Package summary derives list level totals and display order from the
// current item set. Everything here is a pure function of its input.
package summary

import "github.com/Kerhoff/ShoppingBoT/internal/models"

// Summary holds the totals of one list
type Summary struct {
	TotalPlanned float64 `json:"total_planned"`
	TotalActual  float64 `json:"total_actual"`
	Difference   float64 `json:"difference"`
	Items        int     `json:"items"`
	Pending      int     `json:"pending"`
	Purchased    int     `json:"purchased"`
}

// UnderBudget reports whether spending is at or below plan.
func (s Summary) UnderBudget() bool {
	return s.Difference >= 0
}

// Summarize computes the totals of items. Planned cost counts every item;
// actual cost counts purchased items only.
func Summarize(items []*models.ShoppingItem) Summary {
	var s Summary
	for _, item := range items {
		s.Items++
		s.TotalPlanned += item.PlannedTotal()
		if item.Purchased {
			s.Purchased++
			s.TotalActual += item.ActualTotal()
		} else {
			s.Pending++
		}
	}
	s.Difference = s.TotalPlanned - s.TotalActual
	return s
}
