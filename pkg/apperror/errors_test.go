package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	e := New("LED_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
	assert.Equal(t, "[LED_001] Insufficient balance in wallet", e.Error())
}

func TestAppError_ErrorWithWrapped(t *testing.T) {
	inner := errors.New("connection refused")
	e := Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, inner)
	assert.Contains(t, e.Error(), "SYS_001")
	assert.Contains(t, e.Error(), "connection refused")
}

func TestAppError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	e := InternalError(inner)
	assert.ErrorIs(t, e, inner)
}

func TestAppError_ErrorsAs(t *testing.T) {
	var target *AppError
	err := fmt.Errorf("handler: %w", ErrNothingToPayout())
	require.ErrorAs(t, err, &target)
	assert.Equal(t, "LED_003", target.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, target.HTTPStatus)
}

func TestErrorConstructors_StatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusPaymentRequired, ErrInsufficientFunds().HTTPStatus)
	assert.Equal(t, http.StatusConflict, ErrInvalidTransition("order already confirmed").HTTPStatus)
	assert.Equal(t, http.StatusUnprocessableEntity, ErrNothingToPayout().HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrNotFound("wallet").HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrInvalidAmount().HTTPStatus)
	assert.Equal(t, http.StatusUnauthorized, ErrInvalidToken().HTTPStatus)
	assert.Equal(t, http.StatusForbidden, ErrForbidden().HTTPStatus)
}

func TestErrNotFound_NamesEntity(t *testing.T) {
	assert.Contains(t, ErrNotFound("topup request").Message, "topup request")
}
