package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("update task: %w", New(KindNotOwner, "You have no permission to update this task: %d", 7))

	assert.True(t, errors.Is(err, ErrNotOwner))
	assert.False(t, errors.Is(err, ErrInsufficientRole))
	assert.Equal(t, KindNotOwner, KindOf(err))
	assert.Contains(t, err.Error(), "task: 7")
}

func TestUnknownEntityNamesID(t *testing.T) {
	err := UnknownEntity("Task", 42)
	require.ErrorIs(t, err, ErrUnknownEntity)
	assert.Equal(t, "There is no Task with id: 42", err.Message)

	assert.Equal(t, "There is no User with executorId: 3", UnknownExecutor(3).Message)
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("signature is invalid")
	err := Wrap(KindTokenInvalid, cause, "invalid token")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("db down")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindOf(errors.New("db down"))))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindUnauthenticated, http.StatusUnauthorized},
		{KindTokenExpired, http.StatusUnauthorized},
		{KindNotOwner, http.StatusForbidden},
		{KindInsufficientRole, http.StatusForbidden},
		{KindExecutorFieldRestricted, http.StatusForbidden},
		{KindUnknownEntity, http.StatusNotFound},
		{KindUnknownExecutor, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.kind))
		})
	}
}

func TestAuthorizationKinds(t *testing.T) {
	assert.True(t, KindExecutorFieldRestricted.Authorization())
	assert.True(t, KindUnauthenticated.Authorization())
	assert.False(t, KindUnknownEntity.Authorization())
	assert.False(t, KindTokenExpired.Authorization())
}

func TestMessageOf(t *testing.T) {
	err := fmt.Errorf("create task: %w", UnknownExecutor(7))
	assert.Equal(t, "There is no User with executorId: 7", MessageOf(err))
	assert.Equal(t, "plain", MessageOf(errors.New("plain")))
}

func TestBodyOf(t *testing.T) {
	assert.Equal(t, Body{Error: "There is no Task with id: 3", Reason: "UnknownEntity"},
		BodyOf(fmt.Errorf("get: %w", UnknownEntity("Task", 3))))
	assert.Equal(t, Body{Error: "internal error", Reason: "Unknown"}, BodyOf(errors.New("connection refused")))
}
