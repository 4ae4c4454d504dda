package integration_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-engine/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type BaseSuite struct {
	suite.Suite
	cfg app.Config
	app *TestApp
	env *environment
}

func (s *BaseSuite) SetupSuite() {
	ctx := context.Background()

	env, err := startEnvironment(ctx)
	s.Require().NoError(err, "failed to start containers")
	s.env = env

	s.cfg = app.Config{
		Port: 3000,
		Env:  "test",
		DB: app.DBConfig{
			DSN:          env.dsn,
			MaxOpenConns: 25,
			MaxIdleTime:  2 * time.Minute,
		},
		Redis: app.RedisConfig{
			URL:          env.redisAddr,
			MaxOpenConns: 10,
			MaxIdleConns: 10,
			MaxIdleTime:  2 * time.Minute,
		},
		Seats: app.SeatsConfig{
			Store:    app.SeatStoreRedis,
			LeaseTTL: time.Minute,
		},
		PaymentMode: app.PaymentModeMock,
		Currency:    "USD",
	}
}

// SetupTest reseeds the catalog and builds a fresh application, so no seat
// pool outlives a test.
func (s *BaseSuite) SetupTest() {
	s.resetState()

	testApp, err := newTestApp(s.cfg)
	s.Require().NoError(err, "cannot initialize app")

	s.app = testApp
}

func (s *BaseSuite) resetState() {
	db, err := app.NewDatabasePool(s.cfg)
	s.Require().NoError(err)
	defer db.Close()

	redisClient, err := app.NewRedisClient(s.cfg)
	s.Require().NoError(err)
	defer redisClient.Close()

	executeSQLFile(s.T(), db, "testdata/catalog_down.sql")
	flushAllCache(s.T(), redisClient)
	executeSQLFile(s.T(), db, "testdata/catalog_up.sql")
}

func (s *BaseSuite) TearDownTest() {
	if s.app != nil {
		s.app.App.Wait()
		s.app.Close()
	}
}

func (s *BaseSuite) TearDownSuite() {
	if s.env != nil {
		if err := s.env.terminate(); err != nil {
			s.T().Logf("failed to terminate containers: %s", err)
		}
	}
}

type Scenario struct {
	Name             string
	Method           string
	URL              string
	Body             io.Reader
	Headers          map[string]string
	Cookies          []*http.Cookie
	ExpectedStatus   int
	ExpectedResponse string
	BeforeTestFunc   func(t testing.TB, app *TestApp)
	AfterTestFunc    func(t testing.TB, app *TestApp, res *http.Response)
}

func (s Scenario) Run(t *testing.T, testApp *TestApp) {
	t.Run(s.Name, func(t *testing.T) {
		req, err := prepareRequest(s.Method, s.URL, s.Body, s.Headers, s.Cookies)
		require.NoError(t, err)

		if s.BeforeTestFunc != nil {
			s.BeforeTestFunc(t, testApp)
		}

		rec := httptest.NewRecorder()
		testApp.App.Routes().ServeHTTP(rec, req)
		testApp.App.Wait()

		res := rec.Result()
		defer res.Body.Close()

		assert.Equal(t, s.ExpectedStatus, res.StatusCode)

		if s.ExpectedResponse != "" {
			compareResponse(t, res.Body, s.ExpectedResponse)
		}

		if s.AfterTestFunc != nil {
			s.AfterTestFunc(t, testApp, res)
		}
	})
}
