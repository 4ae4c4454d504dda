package app

import (
	"errors"
	"net/http"

	"github.com/metinatakli/seat-reservation-engine/api"
	"github.com/metinatakli/seat-reservation-engine/internal/payment"
)

func (app *Application) GetWallet(w http.ResponseWriter, r *http.Request) {
	userId := app.contextGetUserId(r)

	balance, err := app.wallets.Balance(r.Context(), userId)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, api.WalletResponse{Balance: balance}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) DepositToWallet(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.WalletDepositRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)

	balance, err := app.wallets.Deposit(r.Context(), userId, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrInvalidAmount):
			app.badRequestResponse(w, r, err)
		default:
			app.serverErrorResponse(w, r, err)
		}
		return
	}

	logger.Info("wallet topped up", "amount", input.Amount.String())

	err = app.writeJSON(w, http.StatusOK, api.WalletResponse{Balance: balance}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
