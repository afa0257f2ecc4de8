package loader

import "sync/atomic"

// Progress exposes the counters of a running load.
// All methods are safe to call from other goroutines while the load runs.
type Progress struct {
	events  atomic.Uint64
	total   atomic.Uint64
	encoded atomic.Uint64
}

// EventsScanned returns the number of events consumed by the scan phase.
func (p *Progress) EventsScanned() uint64 {
	return p.events.Load()
}

// SignalsTotal returns the number of signals to encode, known once the scan phase ends.
func (p *Progress) SignalsTotal() uint64 {
	return p.total.Load()
}

// SignalsEncoded returns the number of signals finished by the encode phase,
// degraded ones included.
func (p *Progress) SignalsEncoded() uint64 {
	return p.encoded.Load()
}

// Fraction returns the completed share of the encode phase in [0, 1].
func (p *Progress) Fraction() float64 {
	total := p.total.Load()
	if total == 0 {
		return 0
	}

	return float64(p.encoded.Load()) / float64(total)
}

func (p *Progress) reset() {
	p.events.Store(0)
	p.total.Store(0)
	p.encoded.Store(0)
}
