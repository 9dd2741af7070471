package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"splitbill/internal/extract"
	"splitbill/internal/geometry"
)

const scanTimeout = 30 * time.Second

// Vision implements the Scanner interface using Google Cloud Vision
// document text detection.
type Vision struct {
	service *vision.Service
}

// NewVision creates a new Vision Scanner instance authenticated with an
// API key.
func NewVision(apiKey string) (*Vision, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision api key is required")
	}

	service, err := vision.NewService(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating vision client: %w", err)
	}

	return &Vision{service: service}, nil
}

// ScanReceipt sends the image through DOCUMENT_TEXT_DETECTION and runs
// the geometry pipeline over the result.
func (v *Vision) ScanReceipt(imageData []byte, contentType string) (*ReceiptScan, error) {
	ctx, cancel := context.WithTimeout(context.Background(), scanTimeout)
	defer cancel()

	// Prepare image data (rotate/downscale, convert to PNG if needed)
	prepared, size, err := prepareImageData(imageData, contentType)
	if err != nil {
		return nil, err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(prepared)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}

	resp, err := v.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("annotating image: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("no response from vision")
	}
	annotated := resp.Responses[0]
	if annotated.Error != nil {
		return nil, fmt.Errorf("vision error: %s", annotated.Error.Message)
	}

	return ScanAnnotation(annotated.FullTextAnnotation, size), nil
}

// ScanAnnotation runs the pure extraction pipeline over an OCR result:
// flatten word geometry, cluster into lines, normalize line order, then
// pick the total. A nil or empty annotation yields an empty scan, not an
// error.
func ScanAnnotation(annotation *vision.TextAnnotation, size geometry.ImageSize) *ReceiptScan {
	words := geometry.FlattenWords(annotation, size)
	lines := extract.NormalizeLineOrder(geometry.ClusterLines(words))
	total := extract.ExtractTotal(lines)

	return &ReceiptScan{
		Lines:    lines,
		Amount:   total.Amount,
		Evidence: total.Evidence,
		Items:    extract.ParseItems(lines),
	}
}

// Close closes the scanner.
func (v *Vision) Close() error {
	return nil
}
