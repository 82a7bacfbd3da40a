package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `You are reading an expense receipt. Extract the following:

1. **Store**: the merchant or business name printed at the top of the receipt.

2. **Date**: the transaction date, converted to YYYY-MM-DD.

3. **Items**: every purchased line with its name, unit price and quantity. Use quantity 1 when none is printed.

4. **Total**: the final amount due as a number.

Return ONLY valid JSON in this exact format:
{
  "store": "Store Name",
  "date": "YYYY-MM-DD",
  "items": [{"name": "Item", "price": 0.00, "quantity": 1}],
  "total": 0.00
}

Important:
- Prices and totals must be numbers, not strings
- Use an empty string or empty list for anything you cannot read
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// Supported upload formats
const (
	mimePNG  = "image/png"
	mimeJPEG = "image/jpeg"
	mimePDF  = "application/pdf"
)

// heicBrands are the ftyp brands written by phone cameras
var heicBrands = map[string]bool{"heic": true, "heix": true, "heif": true, "mif1": true, "msf1": true}

// isHEIC sniffs the ISO-BMFF ftyp box or falls back to the declared MIME type
func isHEIC(data []byte, mimeType string) bool {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" && heicBrands[string(data[8:12])] {
		return true
	}
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}

// renderPDF rasterises the first page of a PDF; receipts are single page
func renderPDF(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
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

// decodeImage decodes HEIC/HEIF, JPEG, PNG or GIF data
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if isHEIC(data, mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("unsupported image format (use JPEG, PNG, GIF, HEIC or PDF): %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// prepareImageData normalises any supported upload to PNG bytes, which is
// the only format sent to the vision models
func prepareImageData(data []byte, contentType string) ([]byte, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		mimeType = mimeJPEG
	}
	if mimeType == mimePNG && !isHEIC(data, mimeType) {
		return data, nil
	}

	var (
		img image.Image
		err error
	)
	if mimeType == mimePDF {
		img, err = renderPDF(data)
	} else {
		img, err = decodeImage(data, mimeType)
	}
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
