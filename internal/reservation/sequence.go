package reservation

import (
	"context"
	"sync/atomic"
)

// FirstBookingID is the id handed to the first booking ever made.
const FirstBookingID = 1000

// IDs hands out booking ids. Every engine instance writing to the same
// booking store must share one source, so ids never collide across processes.
type IDs interface {
	NextID(ctx context.Context) (int64, error)
}

// IDSequence is a process-local IDs source for a single engine instance.
type IDSequence struct {
	last atomic.Int64
}

// NewIDSequence continues after last, the highest id already issued. Zero
// starts at FirstBookingID.
func NewIDSequence(last int64) *IDSequence {
	s := &IDSequence{}
	s.last.Store(max(last, FirstBookingID-1))
	return s
}

func (s *IDSequence) NextID(context.Context) (int64, error) {
	return s.last.Add(1), nil
}
