package integration_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxstd "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

const migrationsURL = "file://../../migrations"

// environment is the database and cache every integration suite runs against.
type environment struct {
	postgres  *postgres.PostgresContainer
	redis     *tcredis.RedisContainer
	dsn       string
	redisAddr string
}

func startEnvironment(ctx context.Context) (env *environment, err error) {
	env = &environment{}
	defer func() {
		if err != nil {
			env.terminate()
		}
	}()

	env.postgres, err = postgres.Run(ctx, dbImageName,
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", dbUser, dbPassword, net.JoinHostPort(host, port.Port()), dbName)
			}).WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return env, fmt.Errorf("failed to start postgres: %w", err)
	}

	env.dsn, err = env.postgres.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return env, err
	}

	if err = migrateUp(ctx, env.dsn); err != nil {
		return env, err
	}

	env.redis, err = tcredis.Run(ctx, cacheImageName)
	if err != nil {
		return env, fmt.Errorf("failed to start redis: %w", err)
	}

	// the application dials a plain host:port
	env.redisAddr, err = env.redis.Endpoint(ctx, "")
	if err != nil {
		return env, err
	}

	return env, nil
}

func (e *environment) terminate() error {
	var errs []error

	if e.postgres != nil {
		errs = append(errs, testcontainers.TerminateContainer(e.postgres))
	}
	if e.redis != nil {
		errs = append(errs, testcontainers.TerminateContainer(e.redis))
	}

	return errors.Join(errs...)
}

// migrateUp applies the service's migrations through a pgx pool, the same
// driver the application uses.
func migrateUp(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := pgxstd.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{DatabaseName: dbName})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsURL, dbName, driver)
	if err != nil {
		return err
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
