package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"

	"splitbill/internal/geometry"
)

const (
	// maxScanWidth caps what gets uploaded to the OCR provider; receipt
	// text stays readable well below this.
	maxScanWidth = 1600
	// landscapeRatio: receipts are tall, so a frame this much wider than
	// it is high was almost certainly photographed sideways.
	landscapeRatio = 1.15
)

// pdfToImage renders the first page of a PDF (most receipts are single
// page).
func pdfToImage(pdfData []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes standard formats plus HEIC/HEIF (the iPhone
// default, which Go's image package doesn't handle).
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format. Supported formats: JPEG, PNG, GIF, HEIC, HEIF, PDF. Error: %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// normalizeImage rotates sideways receipts upright and downscales large
// phone photos before OCR.
func normalizeImage(img image.Image) image.Image {
	bounds := img.Bounds()
	if float64(bounds.Dx()) > float64(bounds.Dy())*landscapeRatio {
		img = imaging.Rotate90(img)
	}
	if img.Bounds().Dx() > maxScanWidth {
		img = imaging.Resize(img, maxScanWidth, 0, imaging.Lanczos)
	}
	return img
}

// isHEICFormat checks if the image data is in HEIC/HEIF format.
// HEIC files carry an ftyp box at offset 4 with a HEIC-related brand.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return mimeType == "image/heic" || mimeType == "image/heif" ||
		strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// prepareImageData converts any supported input to an upright PNG no
// wider than maxScanWidth and reports the final pixel size. The reported
// size is what normalized OCR vertices must be scaled against, since it
// is the size the provider actually sees.
func prepareImageData(data []byte, contentType string) ([]byte, geometry.ImageSize, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = "image/jpeg" // default
	}

	var img image.Image
	var err error
	if mimeType == "application/pdf" {
		img, err = pdfToImage(data)
	} else {
		img, err = decodeImage(data, mimeType)
	}
	if err != nil {
		return nil, geometry.ImageSize{}, err
	}

	img = normalizeImage(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, geometry.ImageSize{}, fmt.Errorf("encoding PNG: %w", err)
	}

	bounds := img.Bounds()
	return buf.Bytes(), geometry.ImageSize{Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
