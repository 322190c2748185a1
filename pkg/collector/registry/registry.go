// Package registry manages collector registration and instantiation.
// Adapters register a factory under their logical source id (usually from
// an init function); the host application builds the live collector set
// the orchestrator consumes.
package registry

import (
	"sync"

	"github.com/quarrylabs/harvester/pkg/collector/core"
	"github.com/quarrylabs/harvester/pkg/config"
	"github.com/quarrylabs/harvester/pkg/errors"
	"github.com/quarrylabs/harvester/pkg/logger"
	"go.uber.org/zap"
)

// Factory creates a collector instance from configuration.
type Factory func(cfg *config.Config) (core.Collector, error)

// Registry manages collector factories keyed by source id.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new collector registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger.Get().With(zap.String("component", "collector_registry")),
	}
}

// Register registers a collector factory under a source id.
func (r *Registry) Register(sourceID string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[sourceID]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "collector %s already registered", sourceID)
	}

	r.factories[sourceID] = factory
	r.logger.Info("collector registered", zap.String("source", sourceID))
	return nil
}

// Create instantiates a collector by source id.
func (r *Registry) Create(sourceID string, cfg *config.Config) (core.Collector, error) {
	r.mu.RLock()
	factory, exists := r.factories[sourceID]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "collector %s not found", sourceID)
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create collector").
			WithDetail("source", sourceID)
	}

	return c, nil
}

// List returns the registered source ids.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	return ids
}

// Exists reports whether a source id is registered.
func (r *Registry) Exists(sourceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[sourceID]
	return ok
}

// Register registers a factory in the global registry.
func Register(sourceID string, factory Factory) error {
	return globalRegistry.Register(sourceID, factory)
}

// Create instantiates a collector from the global registry.
func Create(sourceID string, cfg *config.Config) (core.Collector, error) {
	return globalRegistry.Create(sourceID, cfg)
}

// List returns the source ids registered globally.
func List() []string {
	return globalRegistry.List()
}

// Exists reports whether a source id is registered globally.
func Exists(sourceID string) bool {
	return globalRegistry.Exists(sourceID)
}
