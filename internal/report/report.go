package report

import (
	"time"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
)

// Report is a filtered receipt set with its aggregates
type Report struct {
	Filter      Filter             `json:"filter"`
	Dimension   Dimension          `json:"group_by"`
	GeneratedAt time.Time          `json:"generated_at"`
	Summary     Summary            `json:"summary"`
	Breakdown   []Bucket           `json:"breakdown"`
	Receipts    []*receipt.Receipt `json:"receipts"`

	// Names maps user IDs to display names for the receipts in the report
	Names map[string]string `json:"names"`
}

// Build filters receipts and aggregates the result. names labels employees.
func Build(receipts []*receipt.Receipt, names map[string]string, f Filter, dim Dimension, now time.Time) *Report {
	matched := Apply(receipts, f)
	if names == nil {
		names = map[string]string{}
	}
	return &Report{
		Filter:      f,
		Dimension:   dim,
		GeneratedAt: now,
		Summary:     Summarize(matched),
		Breakdown:   Breakdown(matched, dim, names),
		Receipts:    matched,
		Names:       names,
	}
}

// EmployeeSpending is how much one user has claimed
type EmployeeSpending struct {
	UserID  string  `json:"user_id"`
	Name    string  `json:"name"`
	Summary Summary `json:"summary"`
}

// Spending summarizes the receipts of a single user
func Spending(receipts []*receipt.Receipt, user *receipt.User) EmployeeSpending {
	return EmployeeSpending{
		UserID:  user.ID,
		Name:    user.FullName(),
		Summary: Summarize(Apply(receipts, Filter{UserID: user.ID})),
	}
}
