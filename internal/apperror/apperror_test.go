package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"auth config", Auth(http.StatusInternalServerError, "missing config"), http.StatusInternalServerError},
		{"not found", NotFound("nope"), http.StatusNotFound},
		{"conflict wrapped", fmt.Errorf("confirm: %w", Conflict("taken")), http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestUnexpectedHidesCause(t *testing.T) {
	cause := errors.New("connection reset")
	e := As(cause)

	assert.Equal(t, KindUnexpected, e.Kind)
	assert.Equal(t, "internal server error", e.Message)
	assert.ErrorIs(t, e, cause)
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("booking not found"))
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))
	assert.False(t, Is(errors.New("x"), KindNotFound))
}
