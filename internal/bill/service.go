package bill

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"splitbill/internal/scanning"
	"splitbill/internal/settle"
)

// IDGenerator generates unique IDs for bills and items
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates IDs using UnixNano timestamp
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles bill operations
type Service struct {
	db          DB
	scanner     scanning.Scanner
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, scanner scanning.Scanner, storage Storage) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, scanner scanning.Scanner, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		scanner:     scanner,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	filenameSpecialRe = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	filenameSpacesRe  = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters
// and truncating length; phone cameras generate long, messy names.
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	base = filenameSpecialRe.ReplaceAllString(base, "")
	base = filenameSpacesRe.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// CreateBill creates a bill with an initial empty first round.
func (s *Service) CreateBill(title string, participants []string) (*Bill, error) {
	now := s.timeSource.Now()
	if strings.TrimSpace(title) == "" {
		title = now.Format("2006-01-02") + " 정산"
	}

	bill := &Bill{
		ID:           s.idGenerator.Generate(),
		Title:        title,
		Participants: participants,
		Rounds: []Round{
			{Name: "1차", Items: []settle.Item{}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.db.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("saving bill: %w", err)
	}
	return bill, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id string) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// ListBills returns all bills
func (s *Service) ListBills() ([]*Bill, error) {
	bills, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// UpdateBill replaces a bill's title, participants and round contents.
// Receipt fields (stored file, raw lines, evidence) are carried over
// from the stored bill by round position; rounds dropped from the update
// have their stored images deleted. Every round's total row is
// recomputed so it stays the remainder of the scanned amount.
func (s *Service) UpdateBill(id, title string, participants []string, rounds []Round) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}

	for i := range rounds {
		if i < len(bill.Rounds) {
			rounds[i].ReceiptFile = bill.Rounds[i].ReceiptFile
			rounds[i].ContentType = bill.Rounds[i].ContentType
			rounds[i].RawLines = bill.Rounds[i].RawLines
			rounds[i].Evidence = bill.Rounds[i].Evidence
		}
		rounds[i].Items = settle.RecalcTotalRow(rounds[i].Items)
	}
	for i := len(rounds); i < len(bill.Rounds); i++ {
		s.deleteRoundReceipt(&bill.Rounds[i])
	}

	if strings.TrimSpace(title) != "" {
		bill.Title = title
	}
	bill.Participants = participants
	bill.Rounds = rounds
	bill.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("saving bill: %w", err)
	}
	return bill, nil
}

// DeleteBill removes a bill and its stored receipt images
func (s *Service) DeleteBill(id string) error {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	for i := range bill.Rounds {
		s.deleteRoundReceipt(&bill.Rounds[i])
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}

func (s *Service) deleteRoundReceipt(r *Round) {
	if r.ReceiptFile == "" {
		return
	}
	if err := s.storage.Delete(r.ReceiptFile); err != nil {
		slog.Warn("Failed to delete receipt file", "filename", r.ReceiptFile, "error", err)
	}
}

// AddRound appends an empty round. An empty name defaults to "N차".
func (s *Service) AddRound(id, name string) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}

	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%d차", len(bill.Rounds)+1)
	}
	bill.Rounds = append(bill.Rounds, Round{Name: name, Items: []settle.Item{}})
	bill.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("saving bill: %w", err)
	}
	return bill, nil
}

// ScanRound stores a receipt image for a round, runs OCR over it, and
// seeds the round's item table with the extracted total row. The scan is
// returned alongside the bill so callers can offer the raw lines and
// suggested items.
func (s *Service) ScanRound(id string, roundIndex int, filename string, data []byte, contentType string) (*Bill, *scanning.ReceiptScan, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting bill: %w", err)
	}
	if roundIndex < 0 || roundIndex >= len(bill.Rounds) {
		return nil, nil, fmt.Errorf("round %d does not exist", roundIndex)
	}

	cleanFilename := sanitizeFilename(filename)
	savedPath, err := s.storage.Save(fmt.Sprintf("%s_r%d_%s", bill.ID, roundIndex, cleanFilename), data)
	if err != nil {
		return nil, nil, fmt.Errorf("saving file: %w", err)
	}

	scan, err := s.scanner.ScanReceipt(data, contentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		// Clean up the saved file since scanning failed
		s.storage.Delete(savedPath)
		return nil, nil, fmt.Errorf("scanning receipt: %w", err)
	}

	round := &bill.Rounds[roundIndex]
	if round.ReceiptFile != "" && round.ReceiptFile != savedPath {
		s.deleteRoundReceipt(round)
	}
	round.ReceiptFile = savedPath
	round.ContentType = contentType
	round.RawLines = scan.Lines
	round.Evidence = scan.Evidence
	round.Items = []settle.Item{{
		ID:            s.idGenerator.Generate(),
		Name:          "합계",
		Amount:        float64(scan.Amount),
		InitialAmount: float64(scan.Amount),
		IsTotal:       true,
	}}
	bill.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveBill(bill); err != nil {
		s.storage.Delete(savedPath)
		return nil, nil, fmt.Errorf("saving bill: %w", err)
	}
	return bill, scan, nil
}

// GetRoundReceipt retrieves the stored receipt image for a round
func (s *Service) GetRoundReceipt(id string, roundIndex int) ([]byte, string, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting bill: %w", err)
	}
	if roundIndex < 0 || roundIndex >= len(bill.Rounds) {
		return nil, "", fmt.Errorf("round %d does not exist", roundIndex)
	}
	round := bill.Rounds[roundIndex]
	if round.ReceiptFile == "" {
		return nil, "", fmt.Errorf("round %d has no receipt", roundIndex)
	}

	data, err := s.storage.Get(round.ReceiptFile)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}
	return data, round.ContentType, nil
}

// Settlement computes per-round settlements and the cross-round net
// summary for a bill.
func (s *Service) Settlement(id string) (*Settlement, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}

	out := &Settlement{Rounds: make([]RoundSettlement, 0, len(bill.Rounds))}
	summaryInput := make([]settle.RoundInput, 0, len(bill.Rounds))
	for _, r := range bill.Rounds {
		out.Rounds = append(out.Rounds, RoundSettlement{
			Name:   r.Name,
			Payer:  r.Payer,
			Result: settle.Settle(r.Items, bill.Participants, r.Payer),
		})
		summaryInput = append(summaryInput, settle.RoundInput{Items: r.Items, Payer: r.Payer})
	}
	out.Summary = settle.Summarize(summaryInput, bill.Participants)

	return out, nil
}
