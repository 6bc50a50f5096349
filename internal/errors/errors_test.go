package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	base := TransportError("judge", fmt.Errorf("connection refused"))
	wrapped := Wrap(base, "creative judgment")

	assert.Equal(t, CodeTransport, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "connection refused")
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrapf(fmt.Errorf("boom"), "step %d", 2)
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Equal(t, "step 2: boom", wrapped.Error())
}

func TestGetCodeThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "ad not found"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Nil(t, WithCode(CodeStorage, nil))
}
