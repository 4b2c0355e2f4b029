package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{name: "domain error", err: NewForbidden("nope"), code: CodeForbidden, status: http.StatusForbidden},
		{name: "wrapped domain error", err: fmt.Errorf("ctx: %w", NewInvalidTransition("open", "closed")), code: CodeInvalidTransition, status: http.StatusConflict},
		{name: "no rows", err: pgx.ErrNoRows, code: CodeNotFound, status: http.StatusNotFound},
		{name: "unknown", err: errors.New("boom"), code: CodeInternal, status: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			require.NotNil(t, got)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.status, got.HTTPStatus)
		})
	}
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestAllocationErrorUnwraps(t *testing.T) {
	cause := errors.New("duplicate key")
	err := NewAllocationError(5, cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, CodeAllocation))
	assert.Equal(t, http.StatusServiceUnavailable, ToDomainError(err).HTTPStatus)
	assert.Equal(t, 5, ToDomainError(err).Details["attempts"])
}

func TestHasCode(t *testing.T) {
	assert.True(t, HasCode(NewKindMismatch("Market", "Department", nil), CodeKindMismatch))
	assert.False(t, HasCode(NewConflict("dup", nil), CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}
