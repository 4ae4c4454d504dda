package seatpool

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-engine/internal/domain"
)

// DefaultLeaseTTL matches how long a selection is held before checkout must
// complete.
const DefaultLeaseTTL = 10 * time.Minute

type Config struct {
	// LeaseTTL bounds how long a successful TryLock keeps a seat Locked.
	LeaseTTL time.Duration
	// Now is the clock used for lease deadlines. Defaults to time.Now.
	Now func() time.Time
	// NewToken generates lease tokens. Defaults to random UUIDs.
	NewToken func() string
}

func (c Config) withDefaults() Config {
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}

	if c.Now == nil {
		c.Now = time.Now
	}

	if c.NewToken == nil {
		c.NewToken = uuid.NewString
	}

	return c
}

// slot is the pool-owned mutable state of one seat. All fields except seat
// are guarded by mu.
type slot struct {
	mu     sync.Mutex
	seat   domain.Seat
	status domain.SeatStatus
	lease  domain.Lease
}

// reclaim returns an expired Locked seat to Available. Callers hold s.mu.
func (s *slot) reclaim(now time.Time) bool {
	if s.status != domain.SeatLocked || !s.lease.Expired(now) {
		return false
	}

	s.status = domain.SeatAvailable
	s.lease = domain.Lease{}

	return true
}

func (s *slot) heldBy(lease domain.Lease) bool {
	return s.status == domain.SeatLocked && s.lease.Token == lease.Token
}
