package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/metinatakli/seat-reservation-engine/api"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/metinatakli/seat-reservation-engine/internal/events"
	"github.com/metinatakli/seat-reservation-engine/internal/mailer"
	"github.com/metinatakli/seat-reservation-engine/internal/mocks"
	"github.com/metinatakli/seat-reservation-engine/internal/reservation"
	"github.com/metinatakli/seat-reservation-engine/internal/seatpool"
	"github.com/metinatakli/seat-reservation-engine/internal/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testUserId = "guest-1"

// newTestApplication builds an application with an in-memory seat store. The
// registry and coordinator are built after opts run, on top of whatever
// catalog and booking repository they installed.
func newTestApplication(t *testing.T, opts ...func(*Application)) *Application {
	t.Helper()

	app := &Application{
		config: Config{
			Env:      "test",
			Currency: "USD",
			Seats: SeatsConfig{
				Store:    SeatStoreMemory,
				LeaseTTL: time.Minute,
			},
		},
		validator:      validator.NewValidator(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		mailer:         mailer.NewMockMailer(),
		publisher:      events.NoopPublisher{},
		sessionManager: scs.New(),
		catalog:        &mocks.MockCatalog{},
		bookingRepo:    &mocks.MockBookingRepo{},
		payments:       &mocks.MockPaymentMethods{},
		wallets:        &mocks.MockWallets{},
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.registry == nil {
		app.registry = seatpool.NewRegistry(NewSeatPoolLoader(app.config, nil, app.catalog, app.bookingRepo))
	}

	if app.coordinator == nil {
		coordinator, err := reservation.NewCoordinator(app.registry, reservation.NewIDSequence(0), app.logger)
		require.NoError(t, err)

		app.coordinator = coordinator
	}

	return app
}

func setupTestSession(t *testing.T, app *Application, r *http.Request, userId string) *http.Request {
	ctx, err := app.sessionManager.Load(r.Context(), "")
	if err != nil {
		t.Errorf("Failed to load session: %v", err)
	}

	app.sessionManager.Put(ctx, SessionKeyUserId.String(), userId)
	ctx = context.WithValue(ctx, SessionKeyUserId, userId)

	return r.WithContext(ctx)
}

func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}

	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// executeRequest builds a JSON request. A string body is sent as is.
func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var payload []byte

	switch v := body.(type) {
	case nil:
	case string:
		payload = []byte(v)
	default:
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		payload = jsonData
	}

	r := httptest.NewRequest(method, url, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	return w, r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	switch tt.wantStatus {
	case http.StatusUnprocessableEntity:
		var validationResp api.ValidationErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if !errorSet[tt.wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", tt.wantErrMessage)
		}

	default:
		var errorResp api.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
			t.Fatalf("Failed to decode error response: %v", err)
		}

		if tt.wantErrMessage != "" && errorResp.Message != tt.wantErrMessage {
			t.Errorf("Error message = %v, want %v", errorResp.Message, tt.wantErrMessage)
		}
	}
}

// testShowtime has two Standard seats in row 1 and a VIP and a Recliner seat
// in row 2.
func testShowtime() *domain.ShowtimeSeats {
	return &domain.ShowtimeSeats{
		ShowtimeID:  1,
		TheaterID:   1,
		TheaterName: "Grand",
		HallID:      2,
		HallName:    "Hall A",
		MovieName:   "Heat",
		Date:        time.Date(2095, 1, 1, 20, 0, 0, 0, time.UTC),
		BasePrice:   decimal.NewFromInt(10),
		Seats: []domain.Seat{
			{ID: 1, Row: 1, Col: 1, Type: domain.SeatTypeStandard, Price: decimal.NewFromInt(10)},
			{ID: 2, Row: 1, Col: 2, Type: domain.SeatTypeStandard, Price: decimal.NewFromInt(10)},
			{ID: 3, Row: 2, Col: 1, Type: domain.SeatTypeVIP, Price: decimal.NewFromInt(15)},
			{ID: 4, Row: 2, Col: 2, Type: domain.SeatTypeRecliner, Price: decimal.NewFromInt(20)},
		},
	}
}

func approve() domain.PaymentProvider {
	return domain.PaymentProviderFunc(func(context.Context, decimal.Decimal) error { return nil })
}

func decline() domain.PaymentProvider {
	return domain.PaymentProviderFunc(func(context.Context, decimal.Decimal) error { return domain.ErrPaymentDeclined })
}

func ptr[T any](v T) *T {
	return &v
}
