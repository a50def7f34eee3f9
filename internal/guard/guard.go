// Package guard reports whether a protected operation (backup, inhibitor,
// operator switch) currently forbids suspending.
package guard

import (
	"context"
)

// Guard reports whether suspension must be held back. reason names the
// blocking operation when active is true. Callers treat a non-nil error
// as active.
type Guard interface {
	Active(ctx context.Context) (active bool, reason string, err error)
}

// Func adapts a function to the Guard interface
type Func func(ctx context.Context) (bool, string, error)

// Active calls f
func (f Func) Active(ctx context.Context) (bool, string, error) {
	return f(ctx)
}

// Composite consults guards in order and stops at the first one that is
// active or fails.
type Composite struct {
	guards []Guard
}

// NewComposite builds a composite guard, dropping nil entries
func NewComposite(guards ...Guard) *Composite {
	c := &Composite{}
	for _, g := range guards {
		if g != nil {
			c.guards = append(c.guards, g)
		}
	}
	return c
}

// Active implements Guard
func (c *Composite) Active(ctx context.Context) (bool, string, error) {
	for _, g := range c.guards {
		active, reason, err := g.Active(ctx)
		if err != nil {
			return true, reason, err
		}
		if active {
			return true, reason, nil
		}
	}
	return false, "", nil
}

// Len returns the number of guards consulted
func (c *Composite) Len() int {
	return len(c.guards)
}
