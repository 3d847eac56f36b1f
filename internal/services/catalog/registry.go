package catalog

import (
	"sync/atomic"

	"underwriting-engine/internal/models"
)

// Registry publishes the current catalog. Reloads replace the whole catalog
// in one pointer swap, so a reader sees either the old or the new table.
type Registry struct {
	current atomic.Pointer[Catalog]
}

// NewRegistry creates a registry serving c.
func NewRegistry(c *Catalog) *Registry {
	r := &Registry{}
	r.current.Store(c)
	return r
}

// Current returns the catalog snapshot in effect.
func (r *Registry) Current() *Catalog {
	return r.current.Load()
}

// Swap installs next and returns the catalog it replaced.
func (r *Registry) Swap(next *Catalog) *Catalog {
	return r.current.Swap(next)
}

// Lookup resolves key against the current snapshot.
func (r *Registry) Lookup(key models.ProductKey) (models.ProductProfile, error) {
	return r.Current().Lookup(key)
}

// Version returns the version of the current snapshot.
func (r *Registry) Version() string {
	return r.Current().Version()
}
