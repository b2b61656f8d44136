package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestCloneKeepsCode(t *testing.T) {
	clone := Clone(ErrInvalidTransition, "closed -> submitted")
	assert.Equal(t, ErrInvalidTransition.Code, clone.Code)
	assert.Equal(t, "closed -> submitted", clone.Message)
	assert.Equal(t, "status transition not allowed", ErrInvalidTransition.Message)
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", Clone(ErrContentRejected, "abusive language"))
	assert.True(t, Is(wrapped, ErrContentRejected))
	assert.False(t, Is(wrapped, ErrValidation))
	assert.False(t, Is(nil, ErrValidation))
}
