package agent

import (
	"go.uber.org/zap"
)

// Registry maps each worker type to its single registered instance.
// Registration happens once at startup; after that the registry is
// read-only, so lookups take no lock.
type Registry struct {
	workers map[WorkerType]Worker
	order   []WorkerType
	logger  *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		workers: make(map[WorkerType]Worker),
		logger:  logger,
	}
}

// Register adds a worker under its type. Registering the same type twice
// replaces the earlier instance.
func (r *Registry) Register(w Worker) {
	if _, exists := r.workers[w.Type()]; !exists {
		r.order = append(r.order, w.Type())
	}
	r.workers[w.Type()] = w
	r.logger.Info("registered worker",
		zap.String("type", string(w.Type())),
		zap.String("name", w.Name()))
}

// Lookup returns the worker registered for a type.
func (r *Registry) Lookup(t WorkerType) (Worker, bool) {
	w, ok := r.workers[t]
	return w, ok
}

// All returns the workers in registration order.
func (r *Registry) All() []Worker {
	out := make([]Worker, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.workers[t])
	}
	return out
}

// NewSystem wires the complete agent system: a coordinator plus the six
// specialized workers, all registered in one registry. The coordinator is
// the entry point; callers hand it a TypeCoordinator task.
func NewSystem(backend Backend, opts Options, logger *zap.Logger) *Coordinator {
	reg := NewRegistry(logger)
	coord := NewCoordinator(reg, backend, opts, logger)
	reg.Register(coord)
	reg.Register(NewResearchWorker(backend, opts, logger))
	reg.Register(NewCoderWorker(backend, opts, logger))
	reg.Register(NewDatabaseWorker(backend, opts, logger))
	reg.Register(NewSecurityWorker(backend, opts, logger))
	reg.Register(NewReporterWorker(backend, opts, logger))
	reg.Register(NewBrowserWorker(backend, opts, logger))
	return coord
}
