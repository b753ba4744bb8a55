package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("no token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("not yours"), http.StatusForbidden},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"internal", Internal("boom"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("load: %w", NotFound("order not found")), http.StatusNotFound},
		{"unclassified", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestKindMatching(t *testing.T) {
	err := Validation("cart is empty")

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "cart is empty", err.Error())
	assert.True(t, IsClientError(err))
	assert.False(t, IsClientError(errors.New("x")))
}
