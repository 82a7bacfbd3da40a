package scanning

import "errors"

// ErrDisabled is returned by the Disabled scanner
var ErrDisabled = errors.New("receipt scanning is disabled")

// ItemData is a line item suggested by a scanner
type ItemData struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// ReceiptData contains best-effort information extracted from a receipt.
// Every field is a suggestion and may be empty.
type ReceiptData struct {
	Store string     `json:"store"`
	Date  string     `json:"date"` // ISO 8601 format, empty when unknown
	Items []ItemData `json:"items"`
	Total float64    `json:"total"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts metadata
	ScanReceipt(imageData []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}

// Disabled is a Scanner that never extracts anything
type Disabled struct{}

func (Disabled) ScanReceipt([]byte, string) (*ReceiptData, error) { return nil, ErrDisabled }

func (Disabled) Close() error { return nil }
