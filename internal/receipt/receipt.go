package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the review state of a receipt
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsTerminal reports whether no further review transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Item is a single line on a receipt
type Item struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Subtotal returns price times quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Receipt represents an expense claim with its review metadata
type Receipt struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Date            time.Time       `json:"date"`
	Store           string          `json:"store"`
	Category        string          `json:"category"`
	Subcategory     string          `json:"subcategory"`
	Items           []Item          `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	Flagged         bool            `json:"flagged"`
	Comment         string          `json:"comment,omitempty"`          // submitter's note
	ReviewComment   string          `json:"review_comment,omitempty"`   // supervisor's note on approval
	RejectionReason string          `json:"rejection_reason,omitempty"` // required when rejected
	ReviewedBy      string          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	Image           string          `json:"image"`
	Revision        int             `json:"revision"`
	Seq             uint64          `json:"seq"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Clone returns a copy that shares no mutable state with r
func (r *Receipt) Clone() *Receipt {
	c := *r
	if r.Items != nil {
		c.Items = make([]Item, len(r.Items))
		copy(c.Items, r.Items)
	}
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		c.ReviewedAt = &t
	}
	return &c
}

// Notes returns the text shown in the notes column of reports
func (r *Receipt) Notes() string {
	if r.Status == StatusRejected && r.RejectionReason != "" {
		return r.RejectionReason
	}
	var parts []string
	for _, s := range []string{r.Comment, r.ReviewComment} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// Patch holds the fields to merge into a stored receipt. Nil fields are left untouched.
type Patch struct {
	Status          *Status
	Flagged         *bool
	Comment         *string
	ReviewComment   *string
	RejectionReason *string
	ReviewedBy      *string
	ReviewedAt      *time.Time

	// Revision, when non-zero, must match the stored revision for the update to apply
	Revision int
}

func (p Patch) apply(r *Receipt) {
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Flagged != nil {
		r.Flagged = *p.Flagged
	}
	if p.Comment != nil {
		r.Comment = *p.Comment
	}
	if p.ReviewComment != nil {
		r.ReviewComment = *p.ReviewComment
	}
	if p.RejectionReason != nil {
		r.RejectionReason = *p.RejectionReason
	}
	if p.ReviewedBy != nil {
		r.ReviewedBy = *p.ReviewedBy
	}
	if p.ReviewedAt != nil {
		t := *p.ReviewedAt
		r.ReviewedAt = &t
	}
}

// DateLayout is the calendar-day format used for receipt dates
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
