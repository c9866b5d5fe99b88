package processor

import (
	"github.com/vendora/payouts/internal/domain"
)

// Registry is the explicit, constructed mapping from processor id to
// implementation. It is built once at wiring time and injected wherever
// processor dispatch is needed, so tests can substitute fakes without
// touching process-wide state.
type Registry struct {
	procs map[domain.ProcessorID]PayoutProcessor
	order []domain.ProcessorID
}

// NewRegistry builds a registry from the given processors. Order is
// preserved: the multi-processor payability check evaluates processors in
// registration order.
func NewRegistry(procs ...PayoutProcessor) *Registry {
	r := &Registry{
		procs: make(map[domain.ProcessorID]PayoutProcessor, len(procs)),
	}

	for _, p := range procs {
		if _, dup := r.procs[p.ID()]; dup {
			continue
		}
		r.procs[p.ID()] = p
		r.order = append(r.order, p.ID())
	}

	return r
}

// Get returns the processor for the given id.
func (r *Registry) Get(id domain.ProcessorID) (PayoutProcessor, error) {
	p, ok := r.procs[id]
	if !ok {
		return nil, domain.ErrUnknownProcessor
	}

	return p, nil
}

// All returns every registered processor in registration order.
func (r *Registry) All() []PayoutProcessor {
	out := make([]PayoutProcessor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.procs[id])
	}

	return out
}
