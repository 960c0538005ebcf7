package transform

import (
	"strings"

	"github.com/gregpriday/copytree/pkg/registry"
	"github.com/gregpriday/copytree/pkg/types"
)

// Registry holds the available transformers in registration order. The
// first transformer whose CanTransform accepts a file wins, so more
// specific transformers should be registered before general ones.
type Registry struct {
	reg *registry.Registry[Transformer]
}

func NewRegistry() *Registry {
	return &Registry{reg: registry.New[Transformer]()}
}

func (r *Registry) Register(t Transformer) error {
	return r.reg.Register(t.Name(), t)
}

func (r *Registry) Get(name string) (Transformer, error) {
	return r.reg.Get(name)
}

func (r *Registry) Names() []string {
	return r.reg.Names()
}

// ForFile returns the first registered transformer that accepts the file,
// or nil if none do.
func (r *Registry) ForFile(file *types.FileRecord) Transformer {
	for _, t := range r.reg.All() {
		if t.CanTransform(file) {
			return t
		}
	}
	return nil
}

// Heavy returns every registered transformer that batches work for an
// end-of-stage flush, in registration order.
func (r *Registry) Heavy() []Transformer {
	var out []Transformer
	for _, t := range r.reg.All() {
		if t.IsHeavy() {
			out = append(out, t)
		}
	}
	return out
}

// disabledMatch reports whether name is covered by an entry in the
// disabled list. Entries match the full name exactly, the full name
// case-insensitively, or the short name (the part after the last dot).
func disabledMatch(name string, disabled []string) bool {
	short := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		short = name[i+1:]
	}
	for _, d := range disabled {
		if d == name || strings.EqualFold(d, name) || strings.EqualFold(d, short) {
			return true
		}
	}
	return false
}
