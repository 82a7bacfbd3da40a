package receipt

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates unique IDs for new records
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Store is the single source of truth for receipts. Every read-modify-write
// runs under one mutex so revision checks are atomic.
type Store struct {
	mu          sync.Mutex
	db          DB
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewStore creates a Store with default ID generator and time source
func NewStore(db DB) *Store {
	return NewStoreWithDeps(db, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewStoreWithDeps creates a Store with custom dependencies for testing
func NewStoreWithDeps(db DB, idGen IDGenerator, timeSrc TimeSource) *Store {
	return &Store{
		db:          db,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Receipts returns a snapshot of every receipt in insertion order.
// Mutating the result does not affect the store.
func (s *Store) Receipts() ([]*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	out := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Receipt returns a copy of the receipt with the given ID
func (s *Store) Receipt(id string) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return r.Clone(), nil
}

// AddReceipt stores r as a new pending receipt. It does not validate r;
// the ID, sequence, status, flag, review fields and timestamps are overwritten.
func (s *Store) AddReceipt(r Receipt) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.db.NextSequence()
	if err != nil {
		return nil, err
	}
	now := s.timeSource.Now()

	stored := r.Clone()
	stored.ID = s.idGenerator.Generate()
	stored.Seq = seq
	stored.Status = StatusPending
	stored.Flagged = false
	stored.ReviewComment = ""
	stored.RejectionReason = ""
	stored.ReviewedBy = ""
	stored.ReviewedAt = nil
	stored.Revision = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now

	if err := s.db.SaveReceipt(stored); err != nil {
		return nil, fmt.Errorf("saving receipt to database: %w", err)
	}
	return stored.Clone(), nil
}

// UpdateReceipt merges patch into the stored receipt. It returns ErrNotFound
// when id is unknown and ErrConflict when patch.Revision is stale.
func (s *Store) UpdateReceipt(id string, patch Patch) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt for update: %w", err)
	}
	if patch.Revision != 0 && patch.Revision != r.Revision {
		return nil, fmt.Errorf("receipt %s at revision %d, update expected %d: %w", id, r.Revision, patch.Revision, ErrConflict)
	}

	patch.apply(r)
	r.Revision++
	r.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(r); err != nil {
		return nil, fmt.Errorf("updating receipt %s: %w", id, err)
	}
	return r.Clone(), nil
}

// DeleteReceipt removes the receipt with the given ID
func (s *Store) DeleteReceipt(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.GetReceipt(id); err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}
	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}
