package util

// A Gate bounds the number of goroutines running a section of code at
// once. Call Enter before the section and Leave after it.
type Gate chan struct{}

// NewGate returns a Gate admitting at most n goroutines at a time.
func NewGate(n int) Gate {
	return Gate(make(chan struct{}, n))
}

// Enter blocks until fewer than n goroutines are inside the gate, then
// claims a slot. Safe to call from many goroutines.
func (g Gate) Enter() {
	g <- struct{}{}
}

// Leave releases a slot claimed by Enter. Every Enter needs a matching
// Leave, though not necessarily from the same goroutine.
func (g Gate) Leave() {
	<-g
}
