// Package pricing generates ticket prices per fare class.
//
// Prices are drawn from an explicit entropy source so callers can seed it in
// tests. Nothing is persisted: the price is fixed when the ticket is written.
package pricing

import (
	"math"
	"math/rand"
	"sync"
)

const (
	firstClassBase   = 500.0
	firstClassSpread = 1000.0
	economyBase      = 150.0
	economySpread    = 400.0
)

// Source yields uniform values in [0, 1).
type Source interface {
	Float64() float64
}

// Quote holds the price for each fare class present in a purchase.
type Quote struct {
	FirstClass float64
	Economy    float64
}

// For returns the quoted price for the given class.
func (q Quote) For(firstClass bool) float64 {
	if firstClass {
		return q.FirstClass
	}
	return q.Economy
}

// PriceForClass draws one price: first class in [500, 1500), economy in
// [150, 550), rounded to cents.
func PriceForClass(firstClass bool, src Source) float64 {
	u := src.Float64()
	if firstClass {
		return roundCents(firstClassBase + u*firstClassSpread)
	}
	return roundCents(economyBase + u*economySpread)
}

// QuoteFor prices a purchase. The source is consulted once per class present,
// first class before economy, so every ticket of a class gets the same price.
func QuoteFor(classes []bool, src Source) Quote {
	var hasFirst, hasEconomy bool
	for _, first := range classes {
		if first {
			hasFirst = true
		} else {
			hasEconomy = true
		}
	}

	var q Quote
	if hasFirst {
		q.FirstClass = PriceForClass(true, src)
	}
	if hasEconomy {
		q.Economy = PriceForClass(false, src)
	}
	return q
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// LockedSource is a goroutine-safe math/rand source.
type LockedSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSource returns a source seeded with seed.
func NewSource(seed int64) *LockedSource {
	return &LockedSource{rnd: rand.New(rand.NewSource(seed))}
}

func (s *LockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}
