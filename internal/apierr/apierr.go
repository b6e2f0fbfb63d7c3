// Package apierr maps domain failures to HTTP status codes.
package apierr

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/treasury/internal/chain"
	"github.com/congo-pay/treasury/internal/chest"
	"github.com/congo-pay/treasury/internal/ledger"
	"github.com/congo-pay/treasury/internal/permission"
	"github.com/congo-pay/treasury/internal/token"
)

var statuses = []struct {
	target error
	status int
}{
	{permission.ErrNotPermitted, http.StatusForbidden},
	{permission.ErrUnauthorized, http.StatusForbidden},
	{chest.ErrUnauthorized, http.StatusForbidden},
	{ledger.ErrInsufficientLedgerBalance, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{ledger.ErrOverflow, http.StatusBadRequest},
	{token.ErrInsufficientBalance, http.StatusBadRequest},
	{token.ErrInsufficientAllowance, http.StatusBadRequest},
	{token.ErrZeroAddress, http.StatusBadRequest},
	{token.ErrOverflow, http.StatusBadRequest},
	{token.ErrInvalidSymbol, http.StatusBadRequest},
	{chain.ErrShortInput, http.StatusBadRequest},
	{chain.ErrUnknownMethod, http.StatusBadRequest},
	{token.ErrUnknownToken, http.StatusNotFound},
	{chest.ErrNotFound, http.StatusNotFound},
	{chest.ErrStillBuried, http.StatusConflict},
	{chest.ErrEmpty, http.StatusConflict},
	{chest.ErrExists, http.StatusConflict},
}

// Status returns the HTTP status for err, or 500 when err is not a known failure.
func Status(err error) int {
	for _, s := range statuses {
		if errors.Is(err, s.target) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// From converts err into a fiber error carrying the mapped status. Unknown
// failures keep their message but surface as 500.
func From(err error) error {
	if err == nil {
		return nil
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	return fiber.NewError(Status(err), err.Error())
}
