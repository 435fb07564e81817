package documents

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	apperrors "machtms/internal/errors"
)

// isPDF sniffs the payload rather than trusting the declared content
// type; browsers lie about it often enough.
func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// imageToPDF renders an image upload as a single-page PDF, scaled to
// fit an A4 page with margins.
func imageToPDF(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "decode image upload")
	}

	const (
		pageWidth  = 210.0
		pageHeight = 297.0
		margin     = 10.0
	)
	maxW := pageWidth - 2*margin
	maxH := pageHeight - 2*margin

	w := maxW
	h := w * float64(cfg.Height) / float64(cfg.Width)
	if h > maxH {
		h = maxH
		w = h * float64(cfg.Width) / float64(cfg.Height)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	opts := fpdf.ImageOptions{ImageType: strings.ToUpper(format)}
	pdf.RegisterImageOptionsReader("upload", opts, bytes.NewReader(data))
	pdf.ImageOptions("upload", margin, margin, w, h, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExecutorFailure, err, "render image as pdf")
	}
	return out.Bytes(), nil
}

// MergePDFs concatenates PDF payloads into one document in order. The
// billing mailer reuses it to bundle PODs for the invoice email.
func MergePDFs(payloads [][]byte) ([]byte, error) {
	if len(payloads) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "nothing to merge")
	}
	if len(payloads) == 1 {
		return payloads[0], nil
	}

	readers := make([]io.ReadSeeker, len(payloads))
	for i, payload := range payloads {
		readers[i] = bytes.NewReader(payload)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, nil); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeExecutorFailure, err, "merge pdf documents")
	}
	return out.Bytes(), nil
}

// normalizeToPDF converts an upload payload to PDF when it is an
// image, or passes PDFs through.
func normalizeToPDF(data []byte, contentType string) ([]byte, error) {
	if isPDF(data) || contentType == "application/pdf" {
		return data, nil
	}
	if strings.HasPrefix(contentType, "image/") {
		return imageToPDF(data)
	}
	return nil, apperrors.New(apperrors.CodeValidation,
		"unsupported upload content type "+contentType)
}
