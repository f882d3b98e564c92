package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(Conflict("order %d is not paid", 7)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("failed to refund: %w", NotFound("order not found"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.False(t, Is(nil, KindNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := ExternalService(cause, "refund call failed")

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, "refund call failed", err.Message())
}

func TestMetadataFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, MetadataFor(KindConflict).HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, MetadataFor(KindIneligible).HTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, MetadataFor(Kind("nope")).HTTPStatus)
	assert.False(t, MetadataFor(KindInternal).DetailsAllowed)
}
