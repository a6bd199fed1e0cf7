package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// ErrUnsupportedPaperSize reports a paper size outside the enumerated set.
var ErrUnsupportedPaperSize = errors.New("pdf: unsupported paper size")

// PaperSize enumerates supported paper geometries.
type PaperSize string

const (
	PaperA4     PaperSize = "A4"
	PaperLetter PaperSize = "Letter"
)

const (
	// marginMM is applied on all four sides.
	marginMM = 15.0
	// renderDPI is the print resolution images are sized against.
	renderDPI = 300.0
	// titleHeightMM reserves room for the optional title line.
	titleHeightMM = 14.0

	mmPerInch = 25.4
)

type paperDims struct {
	widthMM  float64
	heightMM float64
}

var papers = map[PaperSize]paperDims{
	PaperA4:     {widthMM: 210, heightMM: 297},
	PaperLetter: {widthMM: 215.9, heightMM: 279.4},
}

// Placement is the computed position of the image on the page, in millimeters.
type Placement struct {
	X, Y, W, H float64
}

// placementFor scales pixel dimensions at renderDPI to fit the content area
// preserving aspect ratio, never upscaling, and centers the result. With a
// title, the image centers in the area below the title band.
func placementFor(paper PaperSize, pxW, pxH int, hasTitle bool) (Placement, error) {
	dims, ok := papers[paper]
	if !ok {
		return Placement{}, fmt.Errorf("%w: %q", ErrUnsupportedPaperSize, paper)
	}
	if pxW <= 0 || pxH <= 0 {
		return Placement{}, errors.New("pdf: image has no dimensions")
	}

	contentW := dims.widthMM - 2*marginMM
	contentH := dims.heightMM - 2*marginMM
	contentTop := marginMM
	if hasTitle {
		contentTop += titleHeightMM
		contentH -= titleHeightMM
	}

	// Native size on paper at the fixed print resolution.
	imgW := float64(pxW) / renderDPI * mmPerInch
	imgH := float64(pxH) / renderDPI * mmPerInch

	scale := 1.0
	if s := contentW / imgW; s < scale {
		scale = s
	}
	if s := contentH / imgH; s < scale {
		scale = s
	}

	w := imgW * scale
	h := imgH * scale
	return Placement{
		X: marginMM + (contentW-w)/2,
		Y: contentTop + (contentH-h)/2,
		W: w,
		H: h,
	}, nil
}

// Render lays the generated image onto a single page of the requested paper
// size, centered inside fixed margins, with an optional title line above it.
func Render(img []byte, paper PaperSize, title string) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("pdf: decode image: %w", err)
	}

	title = strings.TrimSpace(title)
	placement, err := placementFor(paper, cfg.Width, cfg.Height, title != "")
	if err != nil {
		return nil, err
	}

	doc := gofpdf.New("P", "mm", string(paper), "")
	doc.SetMargins(marginMM, marginMM, marginMM)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	if title != "" {
		doc.SetFont("Helvetica", "B", 18)
		doc.SetXY(marginMM, marginMM)
		doc.CellFormat(papers[paper].widthMM-2*marginMM, titleHeightMM, title, "", 0, "CM", false, 0, "")
	}

	imageType := strings.ToUpper(format)
	opts := gofpdf.ImageOptions{ImageType: imageType}
	doc.RegisterImageOptionsReader("page-image", opts, bytes.NewReader(img))
	doc.ImageOptions("page-image", placement.X, placement.Y, placement.W, placement.H, false, opts, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render document: %w", err)
	}
	return buf.Bytes(), nil
}
