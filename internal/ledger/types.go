package ledger

import (
	"errors"
	"fmt"
)

// Resource is one of the two trackable resource kinds
type Resource string

const (
	ResourceMilk Resource = "milk"
	ResourceEggs Resource = "eggs"
)

var (
	ErrInvalidAmount   = errors.New("amount must be a non-negative integer")
	ErrUnknownResource = errors.New("unknown resource kind")
)

// Accrual holds the running counters of one player for the open
// tracking period. Counters only grow between resets
type Accrual struct {
	Milk int `json:"milk"`
	Eggs int `json:"eggs"`
}

// Profit converts the counters into money at the given rate
func (a *Accrual) Profit(rate float64) float64 {
	return float64(a.Milk)*rate + float64(a.Eggs)*rate
}

// Ledger maps a player identity (the raw mention string, e.g. <@1234>)
// to its accrual counters
type Ledger map[string]*Accrual

// Accrue adds amount to the counter matching the resource kind,
// creating the player entry if it does not exist yet.
// The ledger is left untouched on error
func (l Ledger) Accrue(identity string, resource Resource, amount int) error {

	if amount < 0 {
		return fmt.Errorf("accrue %d %s for %s: %w", amount, resource, identity, ErrInvalidAmount)
	}

	switch resource {
	case ResourceMilk, ResourceEggs:
	default:
		return fmt.Errorf("accrue for %s: %q: %w", identity, resource, ErrUnknownResource)
	}

	accrual, ok := l[identity]
	if !ok {
		accrual = &Accrual{}
		l[identity] = accrual
	}
	switch resource {
	case ResourceMilk:
		accrual.Milk += amount
	case ResourceEggs:
		accrual.Eggs += amount
	}
	return nil
}

// Profit is the total profit of all players at the given rate
func (l Ledger) Profit(rate float64) float64 {
	var total float64
	for _, accrual := range l {
		total += accrual.Profit(rate)
	}
	return total
}
