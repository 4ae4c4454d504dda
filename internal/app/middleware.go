package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// ensureGuestUserSession gives every visitor a stable guest identity. Bookings
// and wallets are owned by that id.
func (app *Application) ensureGuestUserSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userId := app.sessionManager.GetString(r.Context(), SessionKeyUserId.String())

		if userId == "" {
			userId = uuid.NewString()

			app.sessionManager.Put(r.Context(), SessionKeyUserId.String(), userId)

			_, _, err := app.sessionManager.Commit(r.Context())
			if err != nil {
				app.serverErrorResponse(w, r, err)
				return
			}
		}

		ctx := context.WithValue(r.Context(), SessionKeyUserId, userId)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
