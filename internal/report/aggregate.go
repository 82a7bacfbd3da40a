package report

import (
	"fmt"
	"sort"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
	"github.com/shopspring/decimal"
)

// Summary holds the headline figures of a receipt set
type Summary struct {
	Count          int             `json:"count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	ApprovedAmount decimal.Decimal `json:"approved_amount"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	RejectedAmount decimal.Decimal `json:"rejected_amount"`
	Average        decimal.Decimal `json:"average"`
	Pending        int             `json:"pending"`
	Approved       int             `json:"approved"`
	Rejected       int             `json:"rejected"`
	Flagged        int             `json:"flagged"`
}

// Summarize totals receipts overall and per status. Average is 0 for an empty set.
func Summarize(receipts []*receipt.Receipt) Summary {
	s := Summary{
		TotalAmount:    decimal.Zero,
		ApprovedAmount: decimal.Zero,
		PendingAmount:  decimal.Zero,
		RejectedAmount: decimal.Zero,
		Average:        decimal.Zero,
	}
	for _, r := range receipts {
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(r.Total)
		switch r.Status {
		case receipt.StatusApproved:
			s.Approved++
			s.ApprovedAmount = s.ApprovedAmount.Add(r.Total)
		case receipt.StatusPending:
			s.Pending++
			s.PendingAmount = s.PendingAmount.Add(r.Total)
		case receipt.StatusRejected:
			s.Rejected++
			s.RejectedAmount = s.RejectedAmount.Add(r.Total)
		}
		if r.Flagged {
			s.Flagged++
		}
	}

	s.TotalAmount = s.TotalAmount.Round(2)
	s.ApprovedAmount = s.ApprovedAmount.Round(2)
	s.PendingAmount = s.PendingAmount.Round(2)
	s.RejectedAmount = s.RejectedAmount.Round(2)
	if s.Count > 0 {
		s.Average = s.TotalAmount.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}

// Dimension is what a breakdown groups by
type Dimension string

const (
	ByCategory Dimension = "category"
	ByEmployee Dimension = "employee"
	ByStatus   Dimension = "status"
	ByMonth    Dimension = "month"
)

// ParseDimension validates a dimension name, defaulting to category
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case "":
		return ByCategory, nil
	case ByCategory, ByEmployee, ByStatus, ByMonth:
		return d, nil
	}
	return "", receipt.NewValidationError("group_by", fmt.Sprintf("unknown breakdown %q", s))
}

// Bucket is one group of a breakdown
type Bucket struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Breakdown groups receipts by dim and sums their totals. Buckets appear in
// order of first encounter, except months which are sorted chronologically.
// names maps user IDs to labels for ByEmployee; unknown users are labelled by ID.
func Breakdown(receipts []*receipt.Receipt, dim Dimension, names map[string]string) []Bucket {
	buckets := make([]Bucket, 0)
	index := make(map[string]int)

	for _, r := range receipts {
		key, label := bucketKey(r, dim, names)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key, Label: label, Total: decimal.Zero})
		}
		buckets[i].Total = buckets[i].Total.Add(r.Total)
		buckets[i].Count++
	}

	for i := range buckets {
		buckets[i].Total = buckets[i].Total.Round(2)
	}
	if dim == ByMonth {
		sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Key < buckets[j].Key })
	}
	return buckets
}

func bucketKey(r *receipt.Receipt, dim Dimension, names map[string]string) (key, label string) {
	switch dim {
	case ByEmployee:
		if name := names[r.UserID]; name != "" {
			return r.UserID, name
		}
		return r.UserID, r.UserID
	case ByStatus:
		return string(r.Status), string(r.Status)
	case ByMonth:
		m := r.Date.Format("2006-01")
		return m, r.Date.Format("Jan 2006")
	default:
		return r.Category, r.Category
	}
}
