package integration_test

const (
	dbName         = "seat_reservation"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"
)

// Catalog seeded by testdata/catalog_up.sql
const (
	TestShowtimeId   = 1
	TestTheaterName  = "Test Theater 1"
	TestHallName     = "Hall 1"
	TestMovieTitle   = "Test Movie"
	TestCustomerMail = "guest@example.com"
)
