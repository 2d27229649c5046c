// Package memory provides an in-process persistence implementation, used
// by tests and single-instance development setups.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
)

type defaultsKey struct {
	tenantID  string
	channelID string
}

// Persistence keeps everything in maps guarded by one RWMutex. Records are
// copied on the way in and out.
type Persistence struct {
	mu       sync.RWMutex
	graphs   map[string]*models.FlowGraph
	triggers map[string][]*models.Trigger
	defaults map[defaultsKey]*models.DefaultFlows
	contexts map[string]*models.ExecutionContext
}

var _ persistence.Persistence = (*Persistence)(nil)

func NewPersistence() *Persistence {
	return &Persistence{
		graphs:   make(map[string]*models.FlowGraph),
		triggers: make(map[string][]*models.Trigger),
		defaults: make(map[defaultsKey]*models.DefaultFlows),
		contexts: make(map[string]*models.ExecutionContext),
	}
}

func graphKey(tenantID, flowID string) string {
	return tenantID + "/" + flowID
}

func (p *Persistence) LoadGraph(_ context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	graph, ok := p.graphs[graphKey(tenantID, flowID)]
	if !ok {
		return nil, persistence.NewStoreError("LoadGraph", persistence.ErrGraphNotFound, tenantID, flowID)
	}

	return copyGraph(graph), nil
}

func (p *Persistence) SaveGraph(_ context.Context, graph *models.FlowGraph) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.graphs[graphKey(graph.TenantID, graph.ID)] = copyGraph(graph)

	return nil
}

func (p *Persistence) DeleteGraph(_ context.Context, tenantID, flowID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.graphs, graphKey(tenantID, flowID))

	return nil
}

func (p *Persistence) Triggers(_ context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*models.Trigger

	for _, trigger := range p.triggers[tenantID] {
		if trigger.Enabled() && trigger.AppliesTo(channelID) {
			copied := *trigger
			out = append(out, &copied)
		}
	}

	return out, nil
}

// SaveTrigger replaces a trigger with the same id or appends a new one.
func (p *Persistence) SaveTrigger(_ context.Context, trigger *models.Trigger) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := *trigger
	list := p.triggers[trigger.TenantID]

	idx := slices.IndexFunc(list, func(t *models.Trigger) bool { return t.ID != "" && t.ID == trigger.ID })
	if idx >= 0 {
		list[idx] = &copied
	} else {
		list = append(list, &copied)
	}

	p.triggers[trigger.TenantID] = list

	return nil
}

func (p *Persistence) DefaultFlows(_ context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, key := range []defaultsKey{{tenantID, channelID}, {tenantID, ""}} {
		if defaults, ok := p.defaults[key]; ok {
			copied := *defaults

			return &copied, nil
		}
	}

	return nil, nil
}

func (p *Persistence) SaveDefaultFlows(_ context.Context, defaults *models.DefaultFlows) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := *defaults
	p.defaults[defaultsKey{defaults.TenantID, defaults.ChannelID}] = &copied

	return nil
}

func (p *Persistence) LoadContext(_ context.Context, tenantID, conversationID string) (*models.ExecutionContext, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	execCtx, ok := p.contexts[models.ConversationKey(tenantID, conversationID)]
	if !ok {
		return nil, persistence.NewStoreError("LoadContext", persistence.ErrExecutionContextNotFound, tenantID, conversationID)
	}

	return execCtx.Clone(), nil
}

func (p *Persistence) SaveContext(_ context.Context, execCtx *models.ExecutionContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.contexts[execCtx.Key()] = execCtx.Clone()

	return nil
}

func (p *Persistence) DeleteContext(_ context.Context, tenantID, conversationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.contexts, models.ConversationKey(tenantID, conversationID))

	return nil
}

func (p *Persistence) DueWaits(_ context.Context, now time.Time, limit int) ([]*models.ExecutionContext, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var due []*models.ExecutionContext

	for _, execCtx := range p.contexts {
		if persistence.Due(execCtx, now) {
			due = append(due, execCtx.Clone())
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ResumeAt.Before(*due[j].ResumeAt)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	return due, nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func copyGraph(graph *models.FlowGraph) *models.FlowGraph {
	copied := *graph
	copied.Nodes = slices.Clone(graph.Nodes)
	copied.Connections = slices.Clone(graph.Connections)

	return &copied
}
