package flash

import "time"

// Waiter polls until done reports true. The hardware guarantees that the
// busy flags eventually clear, so the default is an unbounded spin; the other
// strategies give up with ErrorTimeout.
type Waiter interface {
	Wait(done func() bool) error
}

type Spin struct{}

func (Spin) Wait(done func() bool) error {
	for !done() {
	}
	return nil
}

// Bounded gives up after a fixed number of polls.
type Bounded struct {
	Polls int
}

func (b Bounded) Wait(done func() bool) error {
	for i := 0; i < b.Polls; i++ {
		if done() {
			return nil
		}
	}
	return ErrorTimeout
}

// Deadline gives up after a fixed duration.
type Deadline struct {
	Timeout time.Duration
}

func (d Deadline) Wait(done func() bool) error {
	timeout := time.Now().Add(d.Timeout)
	for time.Now().Before(timeout) {
		if done() {
			return nil
		}
	}
	return ErrorTimeout
}
