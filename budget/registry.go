package budget

import (
	"fmt"

	"github.com/aponysus/effex/internal"
)

// Registry resolves the budget names carried by retry options. The zero
// value is ready to use.
type Registry struct {
	budgets internal.Registry[Budget]
}

func NewRegistry() *Registry { return &Registry{} }

// Register stores b under name, replacing any budget already registered
// there. Names are trimmed; empty names and nil budgets are rejected.
func (r *Registry) Register(name string, b Budget) error {
	if r == nil {
		return fmt.Errorf("effex: register budget %q: %w", name, internal.ErrNilRegistry)
	}
	if _, err := r.budgets.Set(name, b); err != nil {
		return fmt.Errorf("effex: register budget %q: %w", name, err)
	}
	return nil
}

// MustRegister is Register for setup code; it panics on error.
func (r *Registry) MustRegister(name string, b Budget) {
	if err := r.Register(name, b); err != nil {
		panic(err)
	}
}

// Get returns the budget registered under name.
func (r *Registry) Get(name string) (Budget, bool) {
	if r == nil {
		return nil, false
	}
	return r.budgets.Lookup(name)
}

// Names returns the registered budget names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return r.budgets.Names()
}
