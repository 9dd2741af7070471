package extract

// NormalizeLineOrder is the insertion point for line reordering between
// clustering and total extraction (e.g. moving a detached amount column
// back next to its labels). No reordering is applied today; the stage
// exists so the pipeline has a defined place for it.
func NormalizeLineOrder(lines []string) []string {
	return lines
}
