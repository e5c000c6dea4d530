package classify

import "github.com/aponysus/effex/internal"

// Registry resolves classifiers referenced by name from retry options. The
// zero value is ready to use.
type Registry struct {
	classifiers internal.Registry[Classifier]
}

func NewRegistry() *Registry { return &Registry{} }

// Register associates name with c, replacing any earlier classifier. Empty
// names and nil classifiers are ignored.
func (r *Registry) Register(name string, c Classifier) {
	if r == nil {
		return
	}
	_, _ = r.classifiers.Set(name, c)
}

// Get returns the classifier registered under name.
func (r *Registry) Get(name string) (Classifier, bool) {
	if r == nil {
		return nil, false
	}
	return r.classifiers.Lookup(name)
}

// Names returns the registered classifier names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return r.classifiers.Names()
}
