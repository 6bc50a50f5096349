package ocr

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "adcompliance/internal/errors"
	"adcompliance/ports"
)

// fakeBinary writes a shell script standing in for tesseract.
func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestTesseract_ExtractText(t *testing.T) {
	bin := fakeBinary(t, `echo "  50% OFF TODAY  "`)
	text, err := NewTesseract(bin).ExtractText(context.Background(), "banner.png")
	require.NoError(t, err)
	assert.Equal(t, "50% OFF TODAY", text)
}

func TestTesseract_Failure(t *testing.T) {
	bin := fakeBinary(t, `echo "Error opening data file" >&2; exit 1`)
	_, err := NewTesseract(bin).ExtractText(context.Background(), "banner.png")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeOCR, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestTesseract_EmptyRef(t *testing.T) {
	_, err := NewTesseract("").ExtractText(context.Background(), " ")
	assert.Equal(t, apperrors.CodeOCR, apperrors.GetCode(err))
}

func TestNoTranscriber(t *testing.T) {
	_, err := NoTranscriber{}.Transcribe(context.Background(), "v.mp4")
	assert.ErrorIs(t, err, ports.ErrNotImplemented)
}
