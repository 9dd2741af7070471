package geometry

import (
	"math"
	"sort"
	"strings"
)

// Clustering thresholds. These are tuned together against real receipt
// photos; change them as a set.
const (
	// fallbackHeight is used when no usable word heights exist.
	fallbackHeight = 12.0
	// heightPercentile trims oversized boxes (logos, stamps) before the
	// representative height is taken.
	heightPercentile = 0.9
	// rowToleranceFactor scales the representative height into the
	// vertical distance within which a word still belongs to a row.
	rowToleranceFactor = 0.33
	// rowToleranceMin keeps the tolerance usable on tiny scans.
	rowToleranceMin = 2.0
	// spacingFactor scales the representative height into the horizontal
	// gap that separates two genuinely distinct words. Smaller gaps are
	// OCR-split characters of the same visual word and are joined.
	spacingFactor = 0.22
)

// cluster is the working row during grouping. It is mutated only while
// clustering runs and discarded after serialization.
type cluster struct {
	words []Word
	minX  float64
	maxX  float64
	minY  float64
	maxY  float64
	h     float64
	cy    float64 // running mean of member word centers
	n     int
}

// ClusterLines groups words into visually coherent text lines and
// serializes each line to a string, ordered top to bottom.
//
// Assignment is a greedy nearest-cluster pass over words sorted by
// (cy, minX): each word joins the existing row whose running center is
// closest within the tolerance, or starts a new row. This is
// intentionally order-dependent and O(words x rows), not a globally
// optimal clustering; ambiguous inputs resolve by scan order.
func ClusterLines(words []Word) []string {
	if len(words) == 0 {
		return nil
	}

	medianH := representativeHeight(words)
	yTol := rowToleranceMin
	if t := rowToleranceFactor * medianH; t > yTol {
		yTol = t
	}

	sorted := make([]Word, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CY != sorted[j].CY {
			return sorted[i].CY < sorted[j].CY
		}
		return sorted[i].MinX < sorted[j].MinX
	})

	var rows []*cluster
	for _, w := range sorted {
		best := -1
		bestDiff := math.Inf(1)
		for i, row := range rows {
			diff := math.Abs(w.CY - row.cy)
			if diff <= yTol && diff < bestDiff {
				bestDiff = diff
				best = i
			}
		}
		if best == -1 {
			rows = append(rows, newCluster(w))
		} else {
			rows[best].add(w)
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].minY < rows[j].minY
	})

	spaceTh := spacingFactor * medianH
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if s := row.serialize(spaceTh); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// representativeHeight is the median word height after discarding boxes
// above the 90th percentile, so one oversized logo box does not inflate
// the row tolerance.
func representativeHeight(words []Word) float64 {
	var hs []float64
	for _, w := range words {
		if w.H > 0 {
			hs = append(hs, w.H)
		}
	}
	if len(hs) == 0 {
		return fallbackHeight
	}
	sort.Float64s(hs)

	idx := int(float64(len(hs)) * heightPercentile)
	if idx >= len(hs) {
		idx = len(hs) - 1
	}
	p90 := hs[idx]

	trimmed := hs[:0]
	for _, h := range hs {
		if h <= p90 {
			trimmed = append(trimmed, h)
		}
	}
	if len(trimmed) == 0 {
		return fallbackHeight
	}
	return trimmed[len(trimmed)/2]
}

func newCluster(w Word) *cluster {
	return &cluster{
		words: []Word{w},
		minX:  w.MinX,
		maxX:  w.MaxX,
		minY:  w.MinY,
		maxY:  w.MaxY,
		h:     w.H,
		cy:    w.CY,
		n:     1,
	}
}

func (c *cluster) add(w Word) {
	c.words = append(c.words, w)
	c.minX = math.Min(c.minX, w.MinX)
	c.maxX = math.Max(c.maxX, w.MaxX)
	c.minY = math.Min(c.minY, w.MinY)
	c.maxY = math.Max(c.maxY, w.MaxY)
	if h := c.maxY - c.minY; h > 0 {
		c.h = h
	}
	c.n++
	c.cy += (w.CY - c.cy) / float64(c.n)
}

// serialize joins the row's words left to right, inserting a single
// space only across gaps wider than spaceTh.
func (c *cluster) serialize(spaceTh float64) string {
	sort.SliceStable(c.words, func(i, j int) bool {
		return c.words[i].MinX < c.words[j].MinX
	})

	var b strings.Builder
	for i, w := range c.words {
		if i > 0 {
			if gap := w.MinX - c.words[i-1].MaxX; gap > spaceTh {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.Text)
	}
	return strings.TrimSpace(b.String())
}
