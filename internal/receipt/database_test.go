package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

// describeDB runs the DB contract against an implementation
func describeDB(name string, newDB func() DB) {
	Describe(name, func() {
		var db DB

		BeforeEach(func() {
			db = newDB()
		})

		AfterEach(func() {
			if db != nil {
				db.Close()
			}
		})

		Describe("receipts", func() {
			var stored *Receipt

			BeforeEach(func() {
				stored = &Receipt{
					ID:          "r-1",
					UserID:      "2",
					Date:        time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC),
					Store:       "Office Depot",
					Category:    "Office",
					Subcategory: "Supplies",
					Items:       []Item{{Name: "Printer Paper", Price: decimal.RequireFromString("45.99"), Quantity: 2}},
					Total:       decimal.RequireFromString("91.98"),
					Status:      StatusPending,
					Image:       "upload:r-1.jpg",
					Revision:    1,
					Seq:         1,
				}
				Expect(db.SaveReceipt(stored)).To(Succeed())
			})

			It("round-trips a receipt", func() {
				got, err := db.GetReceipt("r-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Store).To(Equal("Office Depot"))
				Expect(got.Total.StringFixed(2)).To(Equal("91.98"))
				Expect(got.Items).To(HaveLen(1))
				Expect(got.Items[0].Price.StringFixed(2)).To(Equal("45.99"))
				Expect(got.Date.Equal(stored.Date)).To(BeTrue())
			})

			It("returns ErrNotFound for unknown ids", func() {
				_, err := db.GetReceipt("nonexistent")
				Expect(err).To(MatchError(ErrNotFound))
				Expect(err.Error()).To(ContainSubstring("receipt nonexistent"))
			})

			It("replaces a receipt saved twice", func() {
				stored.Status = StatusApproved
				Expect(db.SaveReceipt(stored)).To(Succeed())

				receipts, err := db.ListReceipts()
				Expect(err).NotTo(HaveOccurred())
				Expect(receipts).To(HaveLen(1))
				Expect(receipts[0].Status).To(Equal(StatusApproved))
			})

			It("deletes a receipt", func() {
				Expect(db.DeleteReceipt("r-1")).To(Succeed())
				_, err := db.GetReceipt("r-1")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		Describe("NextSequence", func() {
			It("increases on every call", func() {
				first, err := db.NextSequence()
				Expect(err).NotTo(HaveOccurred())
				second, err := db.NextSequence()
				Expect(err).NotTo(HaveOccurred())
				Expect(second).To(BeNumerically(">", first))
			})
		})

		Describe("users", func() {
			It("saves, lists and deletes users", func() {
				Expect(db.SaveUser(&User{ID: "1", FirstName: "John", Role: RoleSupervisor})).To(Succeed())
				Expect(db.SaveUser(&User{ID: "2", FirstName: "Jane", Role: RoleEmployee})).To(Succeed())

				users, err := db.ListUsers()
				Expect(err).NotTo(HaveOccurred())
				Expect(users).To(HaveLen(2))

				Expect(db.DeleteUser("2")).To(Succeed())
				_, err = db.GetUser("2")
				Expect(err).To(MatchError(ErrNotFound))

				john, err := db.GetUser("1")
				Expect(err).NotTo(HaveOccurred())
				Expect(john.Role).To(Equal(RoleSupervisor))
			})
		})

		Describe("departments", func() {
			It("saves, lists and deletes departments", func() {
				Expect(db.SaveDepartment(&Department{ID: "1", Name: "Engineering", SupervisorID: "1"})).To(Succeed())

				departments, err := db.ListDepartments()
				Expect(err).NotTo(HaveOccurred())
				Expect(departments).To(HaveLen(1))
				Expect(departments[0].Name).To(Equal("Engineering"))

				Expect(db.DeleteDepartment("1")).To(Succeed())
				_, err = db.GetDepartment("1")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})
}

var _ = Describe("Databases", func() {
	describeDB("BoltDB", func() DB {
		db, err := NewBoltDB(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
		return db
	})

	describeDB("MemoryDB", func() DB {
		return NewMemoryDB()
	})
})

var _ = Describe("NewBoltDB", func() {
	It("fails when the path cannot be opened", func() {
		_, err := NewBoltDB(filepath.Join(GinkgoT().TempDir(), "missing", "test.db"))
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("opening boltdb"))
	})

	It("keeps data across reopen", func() {
		path := filepath.Join(GinkgoT().TempDir(), "test.db")
		db, err := NewBoltDB(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.SaveUser(&User{ID: "1", FirstName: "John"})).To(Succeed())
		Expect(db.Close()).To(Succeed())

		db, err = NewBoltDB(path)
		Expect(err).NotTo(HaveOccurred())
		defer db.Close()
		u, err := db.GetUser("1")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.FirstName).To(Equal("John"))
	})
})
