// Package ocr recognizes text in rectified patches. Scene text is the main
// consumer of rectification: once a sign or label is warped to a frontal
// view, its low-rank component is a much better OCR input than the raw scan.
package ocr

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"

	"tilt-rectify/internal/imgproc"

	"github.com/otiai10/gosseract/v2"
	"gonum.org/v1/gonum/mat"
)

// Engine provides OCR functionality using Tesseract.
type Engine struct {
	client *gosseract.Client
}

// NewEngine creates an OCR engine for the given language ("eng" if empty).
func NewEngine(lang string) (*Engine, error) {
	if lang == "" {
		lang = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	return &Engine{client: client}, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// RecognizePatch performs OCR on a rectified grayscale patch.
func (e *Engine) RecognizePatch(patch *mat.Dense) (string, error) {
	if patch == nil {
		return "", fmt.Errorf("nil patch")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, imgproc.ToImage(imgproc.Stretch(patch))); err != nil {
		return "", fmt.Errorf("failed to encode patch: %w", err)
	}

	// PSM 6 = assume a single uniform block of text
	if err := e.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("failed to set PSM: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}

	text = strings.TrimSpace(text)
	text = strings.Join(strings.Fields(text), " ")
	return text, nil
}
