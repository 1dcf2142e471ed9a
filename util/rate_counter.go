package util

import (
	"sync"
	"time"
)

// How often the balance is topped up. Shorter intervals mean more churn;
// longer ones mean readers sit idle longer once the balance runs dry.
const refillEvery = 1 * time.Minute

// A RateCounter limits how quickly archived bags are read while their
// checksums are being verified. It keeps a balance of bytes that readers
// draw down. The balance is topped up periodically, and while it is
// negative the OK channel blocks, pausing every reader using this counter.
type RateCounter struct {
	ok      chan struct{} // receivable while the balance is positive
	stop    chan struct{} // closed by Stop
	m       sync.Mutex    // protects balance
	balance int64
}

// NewRateCounter returns a counter refilling at the given number of units
// per second. The refill is not continuous. The whole amount due for the
// interval is deposited at once, and the counter starts with one interval's
// worth of credit.
func NewRateCounter(rate float64) *RateCounter {
	chunk := int64(rate * refillEvery.Seconds())
	r := &RateCounter{
		ok:      make(chan struct{}),
		stop:    make(chan struct{}),
		balance: chunk,
	}
	go r.refill(chunk)
	return r
}

// Use deducts count units from the balance. The balance may go negative.
func (r *RateCounter) Use(count int64) {
	r.m.Lock()
	r.balance -= count
	r.m.Unlock()
}

// OK returns the channel readers wait on. It delivers a value when it is
// fine to keep reading, and it is closed once the counter is stopped.
func (r *RateCounter) OK() <-chan struct{} {
	return r.ok
}

// Stop the refill goroutine and close the OK channel, releasing anyone
// waiting on it. Calling Stop twice panics.
func (r *RateCounter) Stop() {
	close(r.stop)
}

func (r *RateCounter) refill(chunk int64) {
	tick := time.NewTicker(refillEvery)
	defer tick.Stop()
	for {
		// only offer the ok channel while we are in credit
		var ok chan struct{}
		r.m.Lock()
		if r.balance > 0 {
			ok = r.ok
		}
		r.m.Unlock()
		select {
		case <-tick.C:
			r.Use(-chunk)
		case ok <- struct{}{}:
		case <-r.stop:
			close(r.ok)
			return
		}
	}
}
