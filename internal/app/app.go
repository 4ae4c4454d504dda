package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
	"github.com/metinatakli/seat-reservation-engine/internal/events"
	"github.com/metinatakli/seat-reservation-engine/internal/mailer"
	"github.com/metinatakli/seat-reservation-engine/internal/payment"
	"github.com/metinatakli/seat-reservation-engine/internal/repository"
	"github.com/metinatakli/seat-reservation-engine/internal/reservation"
	"github.com/metinatakli/seat-reservation-engine/internal/seatpool"
	appvalidator "github.com/metinatakli/seat-reservation-engine/internal/validator"
	"github.com/metinatakli/seat-reservation-engine/internal/vcs"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var (
	version = vcs.Version()
)

const serviceName = "seat-reservation-api"

const (
	SeatStoreMemory = "memory"
	SeatStoreRedis  = "redis"

	PaymentModeStripe = "stripe"
	PaymentModeMock   = "mock"
)

type Config struct {
	Port             int
	Env              string
	DB               DBConfig
	Redis            RedisConfig
	SMTP             SMTPConfig
	Stripe           StripeConfig
	AMQP             AMQPConfig
	Seats            SeatsConfig
	PaymentMode      string
	Currency         string
	OtelCollectorUrl string
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string
}

type StripeConfig struct {
	SecretKey string
}

type AMQPConfig struct {
	URL string
}

type SeatsConfig struct {
	// Store is either SeatStoreMemory or SeatStoreRedis.
	Store         string
	LeaseTTL      time.Duration
	SweepInterval time.Duration
}

type paymentResolver interface {
	Resolve(method domain.PaymentMethod, userID, paymentMethodID string) (domain.PaymentProvider, error)
}

type walletService interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
}

type Application struct {
	config         Config
	logger         *slog.Logger
	validator      *validator.Validate
	mailer         mailer.Mailer
	publisher      events.Publisher
	sessionManager *scs.SessionManager

	catalog     domain.Catalog
	bookingRepo domain.BookingRepository

	registry    *seatpool.Registry
	coordinator *reservation.Coordinator

	payments paymentResolver
	wallets  walletService

	wg sync.WaitGroup
}

func Run() error {
	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", "dev", "Environment (dev|staging|prod)")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", "", "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")

	flag.StringVar(&cfg.Redis.URL, "redis-url", "", "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.SMTP.Host, "smtp-host", "sandbox.smtp.mailtrap.io", "SMTP host")
	flag.IntVar(&cfg.SMTP.Port, "smtp-port", 2525, "SMTP port")
	flag.StringVar(&cfg.SMTP.Username, "smtp-username", "", "SMTP username")
	flag.StringVar(&cfg.SMTP.Password, "smtp-password", "", "SMTP password")
	flag.StringVar(&cfg.SMTP.Sender, "smtp-sender", "CineX <no-reply@cinex.metinatakli.net>", "SMTP sender")

	flag.StringVar(&cfg.Stripe.SecretKey, "stripe-key", "", "Stripe secret key")
	flag.StringVar(&cfg.AMQP.URL, "amqp-url", "", "RabbitMQ URL, booking events are dropped when empty")

	flag.StringVar(&cfg.Seats.Store, "seat-store", SeatStoreMemory, "Seat state store (memory|redis)")
	flag.DurationVar(&cfg.Seats.LeaseTTL, "lease-ttl", seatpool.DefaultLeaseTTL, "How long a locked seat is held")
	flag.DurationVar(&cfg.Seats.SweepInterval, "sweep-interval", seatpool.DefaultSweepInterval, "How often expired seat locks are reclaimed")

	flag.StringVar(&cfg.PaymentMode, "payment-mode", PaymentModeStripe, "Card payment backend (stripe|mock)")
	flag.StringVar(&cfg.Currency, "currency", "USD", "Currency recorded on payments")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", "", "OpenTelemetry collector gRPC endpoint")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	if cfg.Seats.Store != SeatStoreMemory && cfg.Seats.Store != SeatStoreRedis {
		return fmt.Errorf("unknown seat store %q", cfg.Seats.Store)
	}

	logger := slog.New(NewMultiHandler(
		slog.NewTextHandler(os.Stdout, nil),
		otelslog.NewHandler(serviceName),
	))

	db, err := NewDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	catalog := repository.NewPostgresSeatRepository(db)
	bookingRepo := repository.NewPostgresBookingRepository(db)

	registry, coordinator, err := NewReservationEngine(cfg, logger, redisClient, catalog, bookingRepo)
	if err != nil {
		return err
	}

	wallets := payment.NewWallets(redisClient)

	var payments *payment.Methods
	switch cfg.PaymentMode {
	case PaymentModeMock:
		logger.Warn("card payments are simulated")
		payments = payment.NewMockMethods(payment.NewMockPaymentProvider(), wallets)
	default:
		payments = payment.NewMethods(payment.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Currency), wallets)
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQP.URL != "" {
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}
		defer conn.Close()

		amqpPublisher, err := events.NewAMQPPublisher(conn)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()

		publisher = amqpPublisher
	}

	app := NewApp(
		cfg,
		logger,
		appvalidator.NewValidator(),
		mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender),
		publisher,
		NewSessionManager(redisClient),
		catalog,
		bookingRepo,
		registry,
		coordinator,
		payments,
		wallets,
	)

	shutdownTelemetry, err := app.InitTelemetry()
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	sweeper, err := seatpool.NewSweeper(registry, cfg.Seats.SweepInterval, logger)
	if err != nil {
		return err
	}

	err = sweeper.Start(context.Background())
	if err != nil {
		return err
	}
	defer sweeper.Stop()

	return app.serve()
}

func NewApp(
	cfg Config,
	logger *slog.Logger,
	validator *validator.Validate,
	mailer mailer.Mailer,
	publisher events.Publisher,
	sessionManager *scs.SessionManager,
	catalog domain.Catalog,
	bookingRepo domain.BookingRepository,
	registry *seatpool.Registry,
	coordinator *reservation.Coordinator,
	payments paymentResolver,
	wallets walletService) *Application {

	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}

	return &Application{
		config:         cfg,
		logger:         logger,
		validator:      validator,
		mailer:         mailer,
		publisher:      publisher,
		sessionManager: sessionManager,
		catalog:        catalog,
		bookingRepo:    bookingRepo,
		registry:       registry,
		coordinator:    coordinator,
		payments:       payments,
		wallets:        wallets,
	}
}

// NewReservationEngine builds the seat pool registry and the coordinator on
// top of it. Booking ids come from the booking store's sequence, so several
// engine instances can share one database.
func NewReservationEngine(
	cfg Config,
	logger *slog.Logger,
	redisClient redis.UniversalClient,
	catalog domain.Catalog,
	bookingRepo domain.BookingRepository) (*seatpool.Registry, *reservation.Coordinator, error) {

	registry := seatpool.NewRegistry(NewSeatPoolLoader(cfg, redisClient, catalog, bookingRepo))

	coordinator, err := reservation.NewCoordinator(registry, bookingRepo, logger)
	if err != nil {
		return nil, nil, err
	}

	return registry, coordinator, nil
}

// NewSeatPoolLoader builds a showtime's pool from the catalog, marking the
// seats of active bookings as booked.
func NewSeatPoolLoader(
	cfg Config,
	redisClient redis.UniversalClient,
	catalog domain.Catalog,
	bookingRepo domain.BookingRepository) seatpool.Loader {

	poolCfg := seatpool.Config{LeaseTTL: cfg.Seats.LeaseTTL}

	return func(ctx context.Context, showtimeID int) (domain.SeatPool, error) {
		// shared by every caller waiting on this showtime
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		showtime, err := catalog.GetSeatsByShowtime(ctx, showtimeID)
		if err != nil {
			return nil, err
		}

		booked, err := bookingRepo.GetBookedSeatIDs(ctx, showtimeID)
		if err != nil {
			return nil, fmt.Errorf("failed to get booked seats of showtime %d: %w", showtimeID, err)
		}

		if cfg.Seats.Store == SeatStoreRedis {
			pool, err := seatpool.NewRedisPool(ctx, redisClient, showtimeID, showtime.Seats, booked, poolCfg)
			if err != nil {
				return nil, err
			}
			return pool, nil
		}

		pool, err := seatpool.New(showtimeID, showtime.Seats, booked, poolCfg)
		if err != nil {
			return nil, err
		}
		return pool, nil
	}
}

func NewSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.Lifetime = 7 * 24 * time.Hour
	sessionManager.IdleTimeout = 24 * time.Hour
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb))
	if err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (app *Application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)
		if err != nil {
			shutdownError <- err
			return
		}

		app.logger.Info("completing background tasks", "addr", srv.Addr)

		app.Wait()
		shutdownError <- nil
	}()

	app.logger.Info("starting server", "addr", srv.Addr, "env", app.config.Env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}

// Wait blocks until every background task has finished.
func (app *Application) Wait() {
	app.wg.Wait()
}
