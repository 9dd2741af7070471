package settle

import (
	"math"
	"slices"
)

// Item is a single cost row on a round. Amounts are in won. An empty
// assignee list means the item is split among all participants. The
// total row (IsTotal) keeps the originally scanned amount in
// InitialAmount so its displayed amount can be recomputed as the
// remainder when other rows change.
type Item struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name"`
	Amount        float64  `json:"amount"`
	Assignees     []string `json:"assignees,omitempty"`
	IsTotal       bool     `json:"is_total,omitempty"`
	InitialAmount float64  `json:"initial_amount,omitempty"`
}

// Row is one participant's share of a settled round.
type Row struct {
	Person     string `json:"person"`
	Owed       int    `json:"owed"`
	PayToPayer int    `json:"pay_to_payer"`
}

// Result is a settled round: the grand total and one row per
// participant, in the participants' given order.
type Result struct {
	Total int   `json:"total"`
	Rows  []Row `json:"rows"`
}

// Settle splits the items among the participants, assuming the payer
// covered the whole round up front.
//
// Each item is rounded to whole won and divided equally among its
// assignees (all participants when none are named). Per-person shares
// accumulate as reals and are rounded independently at the end; the
// leftover difference against the total is folded into the payer's row,
// which is what makes sum(owed) equal the total exactly whenever a valid
// payer is set. Without a payer the rounding drift is left in place.
//
// Malformed input degrades instead of failing: empty participant ids are
// dropped, unknown assignees are ignored, and an item whose named
// assignees are all unknown charges nobody.
func Settle(items []Item, participants []string, payer string) Result {
	ps := make([]string, 0, len(participants))
	for _, p := range participants {
		if p != "" {
			ps = append(ps, p)
		}
	}

	owed := make(map[string]float64, len(ps))
	for _, p := range ps {
		owed[p] = 0
	}

	total := 0
	for _, it := range items {
		amt := int(math.Round(it.Amount))
		if amt == 0 {
			continue
		}
		total += amt

		assignees := ps
		if len(it.Assignees) > 0 {
			assignees = filterKnown(it.Assignees, ps)
		}
		if len(assignees) == 0 {
			continue
		}

		share := float64(amt) / float64(len(assignees))
		for _, a := range assignees {
			owed[a] += share
		}
	}

	rounded := make(map[string]int, len(ps))
	sumRounded := 0
	for _, p := range ps {
		rounded[p] = int(math.Round(owed[p]))
		sumRounded += rounded[p]
	}
	if payer != "" {
		if _, ok := rounded[payer]; ok {
			rounded[payer] += total - sumRounded
		}
	}

	rows := make([]Row, 0, len(ps))
	for _, p := range ps {
		row := Row{Person: p, Owed: rounded[p]}
		if p != payer && row.Owed > 0 {
			row.PayToPayer = row.Owed
		}
		rows = append(rows, row)
	}

	return Result{Total: total, Rows: rows}
}

func filterKnown(assignees, participants []string) []string {
	var out []string
	for _, a := range assignees {
		if slices.Contains(participants, a) {
			out = append(out, a)
		}
	}
	return out
}

// RecalcTotalRow returns the items with the first total row's amount
// reset to its initially scanned amount minus the sum of the non-total
// rows, so the item table always accounts for the whole receipt. Items
// without a total row are returned unchanged.
func RecalcTotalRow(items []Item) []Item {
	out := slices.Clone(items)

	idx := -1
	for i, it := range out {
		if it.IsTotal {
			idx = i
			break
		}
	}
	if idx < 0 {
		return out
	}

	var otherSum float64
	for _, it := range out {
		if !it.IsTotal {
			otherSum += it.Amount
		}
	}
	out[idx].Amount = out[idx].InitialAmount - otherSum
	return out
}

// RoundInput names one round's items and payer for the cross-round
// summary.
type RoundInput struct {
	Items []Item
	Payer string
}

// NetRow is one person's position across every round: what their shares
// add up to, what they fronted as a payer, and the resulting net
// (positive means they should receive money).
type NetRow struct {
	Person string `json:"person"`
	Owed   int    `json:"owed"`
	Paid   int    `json:"paid"`
	Net    int    `json:"net"`
}

// Summarize settles every round and nets the results per person. Rows
// follow the participants' order; a payer not in the participant list
// still gets a row, appended after them.
func Summarize(rounds []RoundInput, participants []string) []NetRow {
	type account struct {
		owed int
		paid int
	}
	accounts := make(map[string]*account, len(participants))
	var order []string
	ensure := func(p string) *account {
		if a, ok := accounts[p]; ok {
			return a
		}
		a := &account{}
		accounts[p] = a
		order = append(order, p)
		return a
	}

	for _, p := range participants {
		if p != "" {
			ensure(p)
		}
	}

	for _, r := range rounds {
		res := Settle(r.Items, participants, r.Payer)
		for _, row := range res.Rows {
			ensure(row.Person).owed += row.Owed
		}
		if r.Payer != "" {
			ensure(r.Payer).paid += res.Total
		}
	}

	out := make([]NetRow, 0, len(order))
	for _, p := range order {
		a := accounts[p]
		out = append(out, NetRow{Person: p, Owed: a.owed, Paid: a.paid, Net: a.paid - a.owed})
	}
	return out
}
