package report

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/receipt"
)

// Date range presets offered by the reports page
const (
	PresetThisMonth = "this_month"
	PresetLast30    = "last_30"
	PresetLast90    = "last_90"
)

// Filter selects receipts. Zero values mean no constraint; all set fields must match.
type Filter struct {
	From     time.Time      `json:"from,omitempty"` // inclusive calendar day
	To       time.Time      `json:"to,omitempty"`   // inclusive calendar day
	UserID   string         `json:"user_id,omitempty"`
	Category string         `json:"category,omitempty"`
	Status   receipt.Status `json:"status,omitempty"`
	Flagged  *bool          `json:"flagged,omitempty"`
	Search   string         `json:"search,omitempty"` // store or category, case-insensitive
}

// Match reports whether r satisfies every constraint of f
func (f Filter) Match(r *receipt.Receipt) bool {
	day := receipt.Day(r.Date)
	if !f.From.IsZero() && day.Before(receipt.Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(receipt.Day(f.To)) {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	if f.Flagged != nil && r.Flagged != *f.Flagged {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(r.Store), q) && !strings.Contains(strings.ToLower(r.Category), q) {
			return false
		}
	}
	return true
}

// Apply returns the receipts matching f, keeping their order
func Apply(receipts []*receipt.Receipt, f Filter) []*receipt.Receipt {
	out := make([]*receipt.Receipt, 0, len(receipts))
	for _, r := range receipts {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Scope restricts receipts to those identity may see
func Scope(receipts []*receipt.Receipt, identity receipt.Identity) []*receipt.Receipt {
	if receipt.CanViewAll(identity) {
		return receipts
	}
	return Apply(receipts, Filter{UserID: identity.UserID})
}

// PresetRange resolves a named date range relative to now
func PresetRange(preset string, now time.Time) (from, to time.Time, err error) {
	today := receipt.Day(now)
	switch preset {
	case PresetThisMonth:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today, nil
	case PresetLast30:
		return today.AddDate(0, 0, -30), today, nil
	case PresetLast90:
		return today.AddDate(0, 0, -90), today, nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("unknown date range %q: %w", preset, receipt.ErrValidation)
}

// ParseFilter reads a Filter from query parameters: from, to, range, user,
// category, status, flagged and q. "all" and empty values are ignored.
func ParseFilter(q url.Values, now time.Time) (Filter, error) {
	var f Filter
	ve := &receipt.ValidationError{}

	value := func(key string) string {
		v := strings.TrimSpace(q.Get(key))
		if strings.EqualFold(v, "all") {
			return ""
		}
		return v
	}

	if preset := value("range"); preset != "" {
		from, to, err := PresetRange(preset, now)
		if err != nil {
			ve.Add("range", "must be this_month, last_30 or last_90")
		}
		f.From, f.To = from, to
	}
	for _, key := range []string{"from", "to"} {
		v := value(key)
		if v == "" {
			continue
		}
		d, err := time.Parse(receipt.DateLayout, v)
		if err != nil {
			ve.Add(key, "must be a date in YYYY-MM-DD format")
			continue
		}
		if key == "from" {
			f.From = d
		} else {
			f.To = d
		}
	}

	f.UserID = value("user")
	f.Category = value("category")
	if s := receipt.Status(value("status")); s != "" {
		if !s.IsValid() {
			ve.Add("status", "must be pending, approved or rejected")
		}
		f.Status = s
	}
	if v := value("flagged"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ve.Add("flagged", "must be true or false")
		} else {
			f.Flagged = &b
		}
	}
	f.Search = strings.TrimSpace(q.Get("q"))

	return f, ve.Err()
}
