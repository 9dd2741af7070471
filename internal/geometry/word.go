package geometry

import (
	"strings"

	vision "google.golang.org/api/vision/v1"
)

// ImageSize is the pixel size of the image that was sent to OCR. Vision
// returns normalized (0..1) vertices for some inputs; the size is needed
// to rescale those into pixel space.
type ImageSize struct {
	Width  int
	Height int
}

// Word is a single recognized word with its bounding extents in pixels.
type Word struct {
	Text string
	MinX float64
	MaxX float64
	MinY float64
	MaxY float64
	H    float64 // vertical extent, clamped to at least 1
	CY   float64 // vertical center
}

// FlattenWords walks the page/block/paragraph hierarchy of a document
// text detection result and returns every word as a flat record. Word
// text is the concatenation of its symbols; words with no text are
// dropped. Malformed or missing geometry yields zero extents rather than
// an error.
func FlattenWords(annotation *vision.TextAnnotation, size ImageSize) []Word {
	var out []Word
	if annotation == nil {
		return out
	}
	for _, page := range annotation.Pages {
		if page == nil {
			continue
		}
		for _, block := range page.Blocks {
			if block == nil {
				continue
			}
			for _, para := range block.Paragraphs {
				if para == nil {
					continue
				}
				for _, word := range para.Words {
					if word == nil {
						continue
					}
					var sb strings.Builder
					for _, sym := range word.Symbols {
						if sym != nil {
							sb.WriteString(sym.Text)
						}
					}
					text := sb.String()
					if text == "" {
						continue
					}

					minX, maxX, minY, maxY := boxExtents(word.BoundingBox, size)
					h := maxY - minY
					if h < 1 {
						h = 1
					}
					out = append(out, Word{
						Text: text,
						MinX: minX,
						MaxX: maxX,
						MinY: minY,
						MaxY: maxY,
						H:    h,
						CY:   (minY + maxY) / 2,
					})
				}
			}
		}
	}
	return out
}

// boxExtents returns the min/max x and y of a bounding polygon. Absolute
// pixel vertices win when present; otherwise normalized vertices are
// scaled by the image size. With neither, all extents are zero.
func boxExtents(box *vision.BoundingPoly, size ImageSize) (minX, maxX, minY, maxY float64) {
	if box == nil {
		return 0, 0, 0, 0
	}

	var xs, ys []float64
	for _, v := range box.Vertices {
		if v == nil {
			continue
		}
		xs = append(xs, float64(v.X))
		ys = append(ys, float64(v.Y))
	}

	if (len(xs) == 0 || len(ys) == 0) && len(box.NormalizedVertices) > 0 && size.Width > 0 && size.Height > 0 {
		xs = xs[:0]
		ys = ys[:0]
		for _, v := range box.NormalizedVertices {
			if v == nil {
				continue
			}
			xs = append(xs, v.X*float64(size.Width))
			ys = append(ys, v.Y*float64(size.Height))
		}
	}

	if len(xs) == 0 || len(ys) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
	}
	minY, maxY = ys[0], ys[0]
	for _, y := range ys[1:] {
		if y < minY {
			minY = y
		}
		if y > maxY {
			maxY = y
		}
	}
	return minX, maxX, minY, maxY
}
