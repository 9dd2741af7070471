package bill

import (
	"time"

	"splitbill/internal/settle"
)

// Bill is one gathering: the people splitting it and the rounds they
// ran up (first venue, second venue, ...).
type Bill struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Participants []string  `json:"participants"`
	Rounds       []Round   `json:"rounds"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Round is one venue's worth of spending: its cost items, who paid, and
// the scanned receipt backing it.
type Round struct {
	Name        string        `json:"name"`
	Payer       string        `json:"payer,omitempty"`
	Items       []settle.Item `json:"items"`
	ReceiptFile string        `json:"receipt_file,omitempty"`
	ContentType string        `json:"content_type,omitempty"`
	RawLines    []string      `json:"raw_lines,omitempty"`
	Evidence    string        `json:"evidence,omitempty"`
}

// Settlement is the computed result for a bill: one settled result per
// round plus the cross-round net summary. It is derived on demand, never
// persisted.
type Settlement struct {
	Rounds  []RoundSettlement `json:"rounds"`
	Summary []settle.NetRow   `json:"summary"`
}

// RoundSettlement pairs a round with its settle result.
type RoundSettlement struct {
	Name   string        `json:"name"`
	Payer  string        `json:"payer"`
	Result settle.Result `json:"result"`
}
