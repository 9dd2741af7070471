package scanning

import "splitbill/internal/extract"

// ReceiptScan is everything extracted from one receipt image.
type ReceiptScan struct {
	// Lines are the reconstructed text lines, top to bottom.
	Lines []string
	// Amount is the best-guess grand total in won; 0 when no money
	// token was found anywhere.
	Amount int
	// Evidence is the line cited for the total.
	Evidence string
	// Items are suggested line items parsed from the text.
	Items []extract.ItemCandidate
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt runs OCR over a receipt image/PDF and extracts its
	// text lines and total amount
	ScanReceipt(imageData []byte, contentType string) (*ReceiptScan, error)
	// Close closes the scanner and releases resources
	Close() error
}
