// Package ocr adapts external text extraction tools to ports.OCRService.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	apperrors "adcompliance/internal/errors"
	"adcompliance/ports"
)

// Tesseract runs the tesseract CLI against local image files.
type Tesseract struct {
	binary string
	lang   string
}

var _ ports.OCRService = (*Tesseract)(nil)

// NewTesseract uses the given binary path; empty means "tesseract" on PATH.
func NewTesseract(binary string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{binary: binary, lang: "eng"}
}

// ExtractText returns the recognized text, trimmed. An empty result is not an error.
func (t *Tesseract) ExtractText(ctx context.Context, imageRef string) (string, error) {
	if strings.TrimSpace(imageRef) == "" {
		return "", apperrors.New(apperrors.CodeOCR, "empty image reference")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, imageRef, "stdout", "-l", t.lang)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", &apperrors.AppError{
			Code:    apperrors.CodeOCR,
			Message: fmt.Sprintf("tesseract failed on %s: %s", imageRef, msg),
			Cause:   err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// NoTranscriber is the transcription backend until a real one exists. Every
// call reports ports.ErrNotImplemented.
type NoTranscriber struct{}

var _ ports.Transcriber = NoTranscriber{}

func (NoTranscriber) Transcribe(context.Context, string) (string, error) {
	return "", ports.ErrNotImplemented
}
