// Package tokens accumulates token counts across a session and estimates
// their cost.
package tokens

import (
	"fmt"
	"sync"
)

// DefaultCostPerMillion is the assumed blended price in dollars per million
// tokens when the configuration does not override it.
const DefaultCostPerMillion = 3.0

// Usage tracks the running token total for a session.
type Usage struct {
	mu             sync.Mutex
	total          int
	costPerMillion float64
}

// NewUsage returns an accumulator priced at costPerMillion dollars per
// million tokens. Zero or negative falls back to the default rate.
func NewUsage(costPerMillion float64) *Usage {
	if costPerMillion <= 0 {
		costPerMillion = DefaultCostPerMillion
	}
	return &Usage{costPerMillion: costPerMillion}
}

// Add records the tokens consumed by one API interaction.
func (u *Usage) Add(n int) {
	if n <= 0 {
		return
	}
	u.mu.Lock()
	u.total += n
	u.mu.Unlock()
}

// Total returns the tokens consumed so far.
func (u *Usage) Total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.total
}

// Cost returns the estimated dollar cost of the session so far.
func (u *Usage) Cost() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return float64(u.total) / 1_000_000 * u.costPerMillion
}

// Summary renders the running total for display.
func (u *Usage) Summary() string {
	u.mu.Lock()
	total := u.total
	cost := float64(u.total) / 1_000_000 * u.costPerMillion
	u.mu.Unlock()
	return fmt.Sprintf("Total tokens used: %d (estimated cost: $%.4f)", total, cost)
}
