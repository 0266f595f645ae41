package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("Model not found")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("bad")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Conflict("Model already exists")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(fmt.Errorf("submit: %w", ErrInvalidTransition)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestPublicMessage(t *testing.T) {
	err := WrapError(NotFound("Log not found"), "get log")
	assert.Equal(t, "Log not found", PublicMessage(err))
	assert.Equal(t, "boom", PublicMessage(errors.New("boom")))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError("DB", "insert failed", ErrDatabase)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.Equal(t, "DB: insert failed: database error", err.Error())
}
