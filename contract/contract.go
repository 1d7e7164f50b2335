// Package contract defines the declarative schemas that tracked sources are
// validated against, and the registry that holds them.
//
// A contract is registered once at startup and never mutated afterwards;
// lookups are safe under arbitrary concurrency. A missing contract is a
// configuration error, not a per-fetch condition.
package contract

import (
	"sort"
	"sync"
	"time"

	"github.com/evlocate/foundation/errors"
)

// Kind is the expected scalar kind of a payload field
type Kind string

const (
	KindNumeric   Kind = "numeric"
	KindString    Kind = "string"
	KindBool      Kind = "boolean"
	KindTimestamp Kind = "timestamp"
	KindList      Kind = "list"
	KindMapping   Kind = "mapping"
)

// Valid reports whether k is one of the declared kinds
func (k Kind) Valid() bool {
	switch k {
	case KindNumeric, KindString, KindBool, KindTimestamp, KindList, KindMapping:
		return true
	}
	return false
}

// Range bounds a numeric field. Values outside [Min, Max] are validation
// errors; values within the configured outer fraction of the range are
// near-bound warnings.
type Range struct {
	Min float64
	Max float64
}

// Contract declares the expected shape, types, ranges, and freshness of one
// source's payload. Immutable after registration.
type Contract struct {
	SourceID       string
	SourceName     string
	RequiredFields []string
	FieldTypes     map[string]Kind
	FieldRanges    map[string]Range
	FreshnessSLA   time.Duration // maximum age before a prior result counts as stale; 0 = no SLA

	// Endpoint and PollInterval configure the built-in poller. Sources
	// without them are tracked only when application code routes fetches
	// through the tracker itself.
	Endpoint     string
	PollInterval time.Duration
}

// Validate checks the contract definition itself for configuration mistakes
func (c *Contract) Validate() error {
	if c.SourceID == "" {
		return errors.New("contract missing source_id")
	}
	for field, kind := range c.FieldTypes {
		if !kind.Valid() {
			return errors.Newf("contract %s: field %q has unknown kind %q", c.SourceID, field, kind)
		}
	}
	if c.PollInterval > 0 && c.Endpoint == "" {
		return errors.Newf("contract %s: poll interval set without an endpoint", c.SourceID)
	}
	for field, r := range c.FieldRanges {
		if r.Min > r.Max {
			return errors.Newf("contract %s: field %q has inverted range [%v, %v]", c.SourceID, field, r.Min, r.Max)
		}
		if kind, ok := c.FieldTypes[field]; ok && kind != KindNumeric {
			return errors.Newf("contract %s: field %q has a range but kind %q", c.SourceID, field, kind)
		}
	}
	return nil
}

// Registry is the write-once-then-read mapping from source_id to contract.
// Registration happens during startup; the lock only guards that phase. Reads
// after startup never contend.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]*Contract
}

// NewRegistry creates an empty contract registry
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]*Contract)}
}

// Register adds a contract. Returns ErrDuplicateContract if the source_id is
// already registered, or a descriptive error for malformed definitions.
func (r *Registry) Register(c Contract) error {
	if err := c.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.contracts[c.SourceID]; exists {
		return errors.NewDuplicateContractError(c.SourceID)
	}

	stored := c
	r.contracts[c.SourceID] = &stored
	return nil
}

// Lookup returns the contract for a source_id, or ErrUnknownSource
func (r *Registry) Lookup(sourceID string) (*Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[sourceID]
	if !ok {
		return nil, errors.NewUnknownSourceError(sourceID)
	}
	return c, nil
}

// SourceIDs returns all registered source ids, sorted for stable iteration
func (r *Registry) SourceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered contracts
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contracts)
}
