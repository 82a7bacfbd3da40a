package receipt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deidaraiorek/expense-eagle-reporter/internal/metrics"
	"github.com/deidaraiorek/expense-eagle-reporter/internal/scanning"
	"github.com/shopspring/decimal"
)

// maxTransitionAttempts bounds retries when a concurrent update wins the revision race
const maxTransitionAttempts = 3

// Amount is a decimal as typed by a user. It accepts JSON numbers and strings
// so unparsable input can be reported per field instead of failing decoding.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		s = ""
	}
	*a = Amount(strings.Trim(s, `"`))
	return nil
}

// DraftItem is a line item as submitted
type DraftItem struct {
	Name     string `json:"name"`
	Price    Amount `json:"price"`
	Quantity int    `json:"quantity"`
}

// Draft is a receipt as submitted by an employee
type Draft struct {
	Date        string      `json:"date"` // YYYY-MM-DD, today when blank
	Store       string      `json:"store"`
	Category    string      `json:"category"`
	Subcategory string      `json:"subcategory"`
	Items       []DraftItem `json:"items"`
	Comment     string      `json:"comment"`
	Image       string      `json:"image"`
}

// Prefill is what scanning an uploaded image suggests for a Draft
type Prefill struct {
	Image     string          `json:"image"`
	Store     string          `json:"store,omitempty"`
	Date      string          `json:"date,omitempty"`
	Items     []DraftItem     `json:"items,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Extracted bool            `json:"extracted"`
}

// Service applies the receipt lifecycle on top of the Store
type Service struct {
	store       *Store
	directory   *Directory
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(store *Store, directory *Directory, scanner scanning.Scanner, storage Storage) *Service {
	return NewServiceWithDeps(store, directory, scanner, storage, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store *Store, directory *Directory, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	if scanner == nil {
		scanner = scanning.Disabled{}
	}
	return &Service{
		store:       store,
		directory:   directory,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Submit validates draft and stores it as a pending receipt owned by the caller
func (s *Service) Submit(identity Identity, draft Draft) (*Receipt, error) {
	r, err := s.submit(identity, draft)
	metrics.ObserveSubmission(metrics.Result(err))
	return r, err
}

func (s *Service) submit(identity Identity, draft Draft) (*Receipt, error) {
	if !CanSubmit(identity) {
		return nil, forbidden("submitting receipts", identity)
	}

	ve := &ValidationError{}
	if _, err := s.directory.User(identity.UserID); errors.Is(err, ErrNotFound) {
		ve.Add("user", "unknown user")
	} else if err != nil {
		return nil, err
	}

	r := Receipt{
		UserID:      identity.UserID,
		Store:       strings.TrimSpace(draft.Store),
		Category:    strings.TrimSpace(draft.Category),
		Subcategory: strings.TrimSpace(draft.Subcategory),
		Comment:     strings.TrimSpace(draft.Comment),
		Image:       strings.TrimSpace(draft.Image),
	}

	if r.Store == "" {
		ve.Add("store", "is required")
	}
	switch {
	case r.Category == "":
		ve.Add("category", "is required")
	case !IsCategory(r.Category):
		ve.Add("category", "unknown category")
	}
	switch {
	case r.Subcategory == "":
		ve.Add("subcategory", "is required")
	case IsCategory(r.Category) && !IsSubcategory(r.Category, r.Subcategory):
		ve.Add("subcategory", fmt.Sprintf("not a subcategory of %s", r.Category))
	}

	if date := strings.TrimSpace(draft.Date); date == "" {
		r.Date = Day(s.timeSource.Now())
	} else if d, err := time.Parse(DateLayout, date); err != nil {
		ve.Add("date", "must be a date in YYYY-MM-DD format")
	} else {
		r.Date = d
	}

	if len(draft.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}
	total := decimal.Zero
	for i, in := range draft.Items {
		field := fmt.Sprintf("items[%d]", i)
		item := Item{Name: strings.TrimSpace(in.Name), Quantity: in.Quantity}
		if item.Name == "" {
			ve.Add(field+".name", "is required")
		}
		price, err := decimal.NewFromString(strings.TrimSpace(string(in.Price)))
		switch {
		case err != nil:
			ve.Add(field+".price", "must be a number")
		case price.IsNegative():
			ve.Add(field+".price", "must not be negative")
		default:
			item.Price = price
		}
		if item.Quantity < 1 {
			ve.Add(field+".quantity", "must be at least 1")
		}
		r.Items = append(r.Items, item)
		total = total.Add(item.Subtotal())
	}

	if r.Image == "" {
		ve.Add("image", "is required")
	} else if key, ok := storageKey(r.Image); ok {
		if err := s.checkUpload(identity, key); errors.Is(err, ErrNotFound) {
			ve.Add("image", "unknown upload")
		} else if err != nil {
			return nil, err
		}
	}

	if err := ve.Err(); err != nil {
		return nil, err
	}

	r.Total = total.Round(2)
	var stored *Receipt
	err := s.directory.withUser(identity.UserID, func(*User) error {
		var err error
		stored, err = s.store.AddReceipt(r)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return nil, NewValidationError("user", "unknown user")
	}
	if err != nil {
		return nil, fmt.Errorf("submitting receipt: %w", err)
	}
	slog.Info("Receipt submitted", "id", stored.ID, "user_id", stored.UserID, "total", stored.Total.StringFixed(2))
	return stored, nil
}

// transition reads the receipt, lets decide build the patch, and writes it
// with a revision check. When the caller gave no revision a lost race is
// retried against the fresh state.
func (s *Service) transition(action string, identity Identity, id string, revision int, decide func(r *Receipt) (Patch, error)) (*Receipt, error) {
	updated, err := s.applyTransition(id, revision, decide)
	metrics.ObserveTransition(action, metrics.Result(err))
	if err != nil {
		return nil, fmt.Errorf("%s receipt %s: %w", action, id, err)
	}
	slog.Info("Receipt reviewed", "action", action, "id", id, "reviewer", identity.UserID, "status", updated.Status)
	return updated, nil
}

func (s *Service) applyTransition(id string, revision int, decide func(r *Receipt) (Patch, error)) (*Receipt, error) {
	var err error
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		var r *Receipt
		r, err = s.store.Receipt(id)
		if err != nil {
			return nil, err
		}
		var patch Patch
		patch, err = decide(r)
		if err != nil {
			return nil, err
		}
		patch.Revision = revision
		if revision == 0 {
			patch.Revision = r.Revision
		}

		var updated *Receipt
		updated, err = s.store.UpdateReceipt(id, patch)
		if err == nil {
			return updated, nil
		}
		if revision != 0 || !errors.Is(err, ErrConflict) {
			return nil, err
		}
	}
	return nil, err
}

func requirePending(r *Receipt) error {
	if r.Status != StatusPending {
		return fmt.Errorf("receipt is %s: %w", r.Status, ErrInvalidTransition)
	}
	return nil
}

// Approve marks a pending receipt approved. A non-zero revision must match
// the stored one.
func (s *Service) Approve(identity Identity, id, comment string, revision int) (*Receipt, error) {
	if !CanReview(identity) {
		return nil, forbidden("approving receipts", identity)
	}
	comment = strings.TrimSpace(comment)
	return s.transition("approve", identity, id, revision, func(r *Receipt) (Patch, error) {
		if err := requirePending(r); err != nil {
			return Patch{}, err
		}
		status := StatusApproved
		now := s.timeSource.Now()
		return Patch{
			Status:        &status,
			ReviewComment: &comment,
			ReviewedBy:    &identity.UserID,
			ReviewedAt:    &now,
		}, nil
	})
}

// Reject marks a pending receipt rejected. reason is required and checked
// before anything else is looked up.
func (s *Service) Reject(identity Identity, id, reason string, revision int) (*Receipt, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, NewValidationError("reason", "a rejection reason is required")
	}
	if !CanReview(identity) {
		return nil, forbidden("rejecting receipts", identity)
	}
	return s.transition("reject", identity, id, revision, func(r *Receipt) (Patch, error) {
		if err := requirePending(r); err != nil {
			return Patch{}, err
		}
		status := StatusRejected
		now := s.timeSource.Now()
		return Patch{
			Status:          &status,
			RejectionReason: &reason,
			ReviewedBy:      &identity.UserID,
			ReviewedAt:      &now,
		}, nil
	})
}

// ToggleFlag flips the flag on a pending receipt
func (s *Service) ToggleFlag(identity Identity, id string, revision int) (*Receipt, error) {
	if !CanReview(identity) {
		return nil, forbidden("flagging receipts", identity)
	}
	return s.transition("flag", identity, id, revision, func(r *Receipt) (Patch, error) {
		if err := requirePending(r); err != nil {
			return Patch{}, err
		}
		flagged := !r.Flagged
		return Patch{Flagged: &flagged}, nil
	})
}

// Receipt returns a receipt the caller is allowed to see. Receipts of other
// users are reported as not found to employees.
func (s *Service) Receipt(identity Identity, id string) (*Receipt, error) {
	if !CanSubmit(identity) {
		return nil, forbidden("viewing receipts", identity)
	}
	r, err := s.store.Receipt(id)
	if err != nil {
		return nil, err
	}
	if !CanViewAll(identity) && r.UserID != identity.UserID {
		return nil, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	return r, nil
}

// Receipts returns the receipts the caller is allowed to see, in submission order
func (s *Service) Receipts(identity Identity) ([]*Receipt, error) {
	if !CanSubmit(identity) {
		return nil, forbidden("viewing receipts", identity)
	}
	all, err := s.store.Receipts()
	if err != nil {
		return nil, err
	}
	if CanViewAll(identity) {
		return all, nil
	}
	own := make([]*Receipt, 0, len(all))
	for _, r := range all {
		if r.UserID == identity.UserID {
			own = append(own, r)
		}
	}
	return own, nil
}

// DeleteReceipt removes a receipt and its stored image. Owners may delete
// their receipts while pending; supervisors may delete any receipt.
func (s *Service) DeleteReceipt(identity Identity, id string) error {
	r, err := s.Receipt(identity, id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}
	if !CanReview(identity) {
		if err := requirePending(r); err != nil {
			return fmt.Errorf("deleting receipt %s: %w", id, err)
		}
	}

	if err := s.store.DeleteReceipt(id); err != nil {
		return err
	}
	if key, ok := storageKey(r.Image); ok {
		if err := s.storage.Delete(key); err != nil {
			slog.Warn("Failed to delete receipt image", "key", key, "error", err)
		}
	}
	slog.Info("Receipt deleted", "id", id, "by", identity.UserID)
	return nil
}

// ScanReceipt stores an uploaded receipt image and asks the scanner for
// suggestions. Scanner failures are logged and yield a Prefill holding only
// the image reference.
func (s *Service) ScanReceipt(identity Identity, filename string, data []byte, contentType string) (*Prefill, error) {
	if !CanSubmit(identity) {
		return nil, forbidden("uploading receipts", identity)
	}
	if len(data) == 0 {
		return nil, NewValidationError("file", "is empty")
	}

	key, err := s.storage.Save(uploadKey(identity.UserID, s.idGenerator.Generate(), filename), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}
	prefill := &Prefill{Image: imageRefPrefix + key}

	start := time.Now()
	extracted, err := s.scanner.ScanReceipt(data, contentType)
	metrics.ObserveScan(metrics.Result(err), time.Since(start))
	if err == nil && extracted == nil {
		err = errors.New("scanner returned no data")
	}
	if err != nil {
		if !errors.Is(err, scanning.ErrDisabled) {
			slog.Error("Failed to scan receipt",
				"filename", filename,
				"content_type", contentType,
				"file_size", len(data),
				"error", err,
			)
		}
		return prefill, nil
	}

	prefill.Extracted = true
	prefill.Store = extracted.Store
	prefill.Date = extracted.Date
	prefill.Total = decimal.NewFromFloat(extracted.Total).Round(2)
	for _, item := range extracted.Items {
		prefill.Items = append(prefill.Items, DraftItem{
			Name:     item.Name,
			Price:    Amount(decimal.NewFromFloat(item.Price).StringFixed(2)),
			Quantity: item.Quantity,
		})
	}
	return prefill, nil
}

// checkUpload confirms key was uploaded by the caller and is still stored
func (s *Service) checkUpload(identity Identity, key string) error {
	if !strings.HasPrefix(key, identity.UserID+"_") {
		return fmt.Errorf("upload %s: %w", key, ErrNotFound)
	}
	_, err := s.storage.Get(key)
	switch {
	case errors.Is(err, ErrValidation):
		return fmt.Errorf("upload %s: %w", key, ErrNotFound)
	case err != nil:
		return fmt.Errorf("checking upload: %w", err)
	}
	return nil
}

// ReceiptImage returns the stored image of a receipt and its content type
func (s *Service) ReceiptImage(identity Identity, id string) ([]byte, string, error) {
	r, err := s.Receipt(identity, id)
	if err != nil {
		return nil, "", err
	}
	key, ok := storageKey(r.Image)
	if !ok {
		return nil, "", fmt.Errorf("receipt %s has no stored image: %w", id, ErrNotFound)
	}
	data, err := s.storage.Get(key)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt image: %w", err)
	}
	return data, contentTypeFor(key, data), nil
}
