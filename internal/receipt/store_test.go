package receipt

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Store", func() {
	var (
		db      *mockDB
		timeSrc *mockTimeSource
		store   *Store
	)

	BeforeEach(func() {
		db = newMockDB()
		timeSrc = &mockTimeSource{now: time.Date(2024, 4, 20, 10, 0, 0, 0, time.UTC)}
		store = NewStoreWithDeps(db, &mockIDGenerator{}, timeSrc)
	})

	Describe("AddReceipt", func() {
		It("overwrites lifecycle fields", func() {
			reviewed := timeSrc.now
			added, err := store.AddReceipt(Receipt{
				ID:              "client-chosen",
				UserID:          "2",
				Store:           "Staples",
				Total:           decimal.RequireFromString("10.00"),
				Status:          StatusApproved,
				Flagged:         true,
				RejectionReason: "nope",
				ReviewedBy:      "1",
				ReviewedAt:      &reviewed,
				Revision:        9,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(added.ID).To(Equal("test-id-1"))
			Expect(added.Status).To(Equal(StatusPending))
			Expect(added.Flagged).To(BeFalse())
			Expect(added.RejectionReason).To(BeEmpty())
			Expect(added.ReviewedBy).To(BeEmpty())
			Expect(added.ReviewedAt).To(BeNil())
			Expect(added.Revision).To(Equal(1))
			Expect(added.Seq).To(Equal(uint64(1)))
		})

		It("returns a copy the caller can mutate", func() {
			added, err := store.AddReceipt(Receipt{Store: "Staples", Items: []Item{{Name: "Pen", Quantity: 1}}})
			Expect(err).NotTo(HaveOccurred())
			added.Items[0].Name = "Stapler"

			stored, err := store.Receipt(added.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Items[0].Name).To(Equal("Pen"))
		})
	})

	Describe("Receipts", func() {
		It("returns receipts in insertion order", func() {
			for _, name := range []string{"first", "second", "third"} {
				_, err := store.AddReceipt(Receipt{Store: name})
				Expect(err).NotTo(HaveOccurred())
			}
			receipts, err := store.Receipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(HaveLen(3))
			Expect(receipts[0].Store).To(Equal("first"))
			Expect(receipts[2].Store).To(Equal("third"))
		})

		It("returns an empty list for an empty store", func() {
			receipts, err := store.Receipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).NotTo(BeNil())
			Expect(receipts).To(BeEmpty())
		})
	})

	Describe("UpdateReceipt", func() {
		var added *Receipt

		BeforeEach(func() {
			var err error
			added, err = store.AddReceipt(Receipt{Store: "Staples"})
			Expect(err).NotTo(HaveOccurred())
			timeSrc.now = timeSrc.now.Add(time.Hour)
		})

		It("merges only the patched fields and bumps the revision", func() {
			flagged := true
			updated, err := store.UpdateReceipt(added.ID, Patch{Flagged: &flagged})
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Flagged).To(BeTrue())
			Expect(updated.Store).To(Equal("Staples"))
			Expect(updated.Status).To(Equal(StatusPending))
			Expect(updated.Revision).To(Equal(2))
			Expect(updated.UpdatedAt).To(Equal(timeSrc.now))
			Expect(updated.CreatedAt).NotTo(Equal(timeSrc.now))
		})

		It("rejects a stale revision", func() {
			status := StatusApproved
			_, err := store.UpdateReceipt(added.ID, Patch{Status: &status, Revision: 7})
			Expect(err).To(MatchError(ErrConflict))

			stored, _ := store.Receipt(added.ID)
			Expect(stored.Status).To(Equal(StatusPending))
			Expect(stored.Revision).To(Equal(1))
		})

		It("reports unknown receipts", func() {
			_, err := store.UpdateReceipt("missing", Patch{})
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("lets exactly one of two writers at the same revision win", func() {
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				conflicts int
			)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					flagged := true
					_, err := store.UpdateReceipt(added.ID, Patch{Flagged: &flagged, Revision: 1})
					if errors.Is(err, ErrConflict) {
						mu.Lock()
						conflicts++
						mu.Unlock()
					} else {
						Expect(err).NotTo(HaveOccurred())
					}
				}()
			}
			wg.Wait()
			Expect(conflicts).To(Equal(1))
		})
	})

	Describe("DeleteReceipt", func() {
		It("removes the receipt", func() {
			added, err := store.AddReceipt(Receipt{Store: "Staples"})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.DeleteReceipt(added.ID)).To(Succeed())
			_, err = store.Receipt(added.ID)
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("reports unknown receipts", func() {
			Expect(store.DeleteReceipt("missing")).To(MatchError(ErrNotFound))
		})

		It("wraps database failures", func() {
			added, err := store.AddReceipt(Receipt{Store: "Staples"})
			Expect(err).NotTo(HaveOccurred())
			db.deleteErr = errors.New("locked")
			Expect(store.DeleteReceipt(added.ID)).To(MatchError(ContainSubstring("deleting receipt from database")))
		})
	})
})
