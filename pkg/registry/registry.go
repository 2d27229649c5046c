// Package registry keeps the node factories the interpreter compiles graphs with.
package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[models.NodeKind]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log,
		factories: make(map[models.NodeKind]protocol.NodeFactory),
	}
}

func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.logger.Debug("Registering node factory", "kind", factory.Kind())
	r.factories[factory.Kind()] = factory
}

// CreateNode compiles one node of the given kind.
func (r *Registry) CreateNode(kind models.NodeKind, id string, config map[string]any) (protocol.FlowNode, error) {
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("node kind '%s' not registered", kind)
	}

	if config == nil {
		config = map[string]any{}
	}

	return factory.Create(id, config)
}

// GetAvailableNodes returns the registered factories ordered by kind.
func (r *Registry) GetAvailableNodes() []protocol.NodeFactory {
	factories := make([]protocol.NodeFactory, 0, len(r.factories))
	for _, factory := range r.factories {
		factories = append(factories, factory)
	}

	sort.Slice(factories, func(i, j int) bool {
		return factories[i].Kind() < factories[j].Kind()
	})

	return factories
}

// NodeDescriptor is the catalogue entry of one node kind.
type NodeDescriptor struct {
	Kind        models.NodeKind `json:"kind"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      map[string]any  `json:"schema"`
}

// Catalogue describes every registered node kind.
func (r *Registry) Catalogue() []NodeDescriptor {
	factories := r.GetAvailableNodes()
	out := make([]NodeDescriptor, 0, len(factories))

	for _, factory := range factories {
		out = append(out, NodeDescriptor{
			Kind:        factory.Kind(),
			Name:        factory.Name(),
			Description: factory.Description(),
			Schema:      factory.Schema(),
		})
	}

	return out
}
