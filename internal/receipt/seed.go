package receipt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

// Seed loads the demo dataset into db when it holds no users yet.
// It reports whether anything was written.
func Seed(db DB, now time.Time) (bool, error) {
	users, err := db.ListUsers()
	if err != nil {
		return false, fmt.Errorf("listing users: %w", err)
	}
	if len(users) > 0 {
		return false, nil
	}

	for _, u := range []*User{
		{ID: "1", FirstName: "John", LastName: "Doe", Email: "john@example.com", Role: RoleSupervisor, DepartmentID: "1"},
		{ID: "2", FirstName: "Jane", LastName: "Smith", Email: "jane@example.com", Role: RoleEmployee, DepartmentID: "1"},
		{ID: "3", FirstName: "Mike", LastName: "Johnson", Email: "mike@example.com", Role: RoleEmployee, DepartmentID: "1"},
	} {
		u.CreatedAt, u.UpdatedAt = now, now
		if err := db.SaveUser(u); err != nil {
			return false, fmt.Errorf("seeding user %s: %w", u.ID, err)
		}
	}

	engineering := &Department{ID: "1", Name: "Engineering", SupervisorID: "1", CreatedAt: now, UpdatedAt: now}
	if err := db.SaveDepartment(engineering); err != nil {
		return false, fmt.Errorf("seeding department: %w", err)
	}

	reviewedAt := now
	for _, r := range []*Receipt{
		{
			ID:          "1",
			UserID:      "2",
			Date:        time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
			Store:       "Office Depot",
			Category:    "Office",
			Subcategory: "Supplies",
			Items: []Item{
				{Name: "Printer Paper", Price: decimal.RequireFromString("45.99"), Quantity: 2},
				{Name: "Ink Cartridge", Price: decimal.RequireFromString("64.80"), Quantity: 1},
			},
			Total:  decimal.RequireFromString("156.78"),
			Status: StatusPending,
			Image:  "https://placehold.co/600x400",
		},
		{
			ID:          "2",
			UserID:      "2",
			Date:        time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC),
			Store:       "Delta Airlines",
			Category:    "Travel",
			Subcategory: "Airfare",
			Items: []Item{
				{Name: "Flight Ticket", Price: decimal.RequireFromString("450.00"), Quantity: 1},
			},
			Total:      decimal.RequireFromString("450.00"),
			Status:     StatusApproved,
			ReviewedBy: "1",
			ReviewedAt: &reviewedAt,
			Image:      "https://placehold.co/600x400",
		},
	} {
		seq, err := db.NextSequence()
		if err != nil {
			return false, err
		}
		r.Seq = seq
		r.Revision = 1
		r.CreatedAt, r.UpdatedAt = now, now
		if err := db.SaveReceipt(r); err != nil {
			return false, fmt.Errorf("seeding receipt %s: %w", r.ID, err)
		}
	}

	slog.Info("Seeded demo data", "users", 3, "departments", 1, "receipts", 2)
	return true, nil
}
