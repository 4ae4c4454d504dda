package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(app.recoverPanic)
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(app.ensureGuestUserSession)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthcheck", app.GetHealth)

		r.Route("/showtimes/{showtimeId}", func(r chi.Router) {
			r.Get("/seats", app.GetSeatMapByShowtime)
			r.Post("/bookings", app.CreateBooking)
		})

		r.Route("/users/me", func(r chi.Router) {
			r.Get("/bookings", app.GetUserBookings)
			r.Get("/bookings/{bookingId}", app.GetUserBookingByID)
			r.Delete("/bookings/{bookingId}", app.CancelUserBooking)

			r.Get("/wallet", app.GetWallet)
			r.Post("/wallet/deposits", app.DepositToWallet)
		})
	})

	return r
}
