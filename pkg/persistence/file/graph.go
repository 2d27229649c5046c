package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"slices"

	"github.com/KallebyX/simao-sub001/pkg/models"
	"github.com/KallebyX/simao-sub001/pkg/persistence"
)

func (fp *Persistence) LoadGraph(_ context.Context, tenantID, flowID string) (*models.FlowGraph, error) {
	path, err := fp.path(flowsDir, tenantID, flowID+".json")
	if err != nil {
		return nil, persistence.NewStoreError("LoadGraph", err, tenantID, flowID)
	}

	var graph models.FlowGraph

	found, err := readJSON(path, &graph)
	if err != nil {
		return nil, persistence.NewStoreError("LoadGraph", err, tenantID, flowID)
	}

	if !found {
		return nil, persistence.NewStoreError("LoadGraph", persistence.ErrGraphNotFound, tenantID, flowID)
	}

	return &graph, nil
}

func (fp *Persistence) SaveGraph(_ context.Context, graph *models.FlowGraph) error {
	path, err := fp.path(flowsDir, graph.TenantID, graph.ID+".json")
	if err != nil {
		return persistence.NewStoreError("SaveGraph", err, graph.TenantID, graph.ID)
	}

	err = writeJSON(path, graph)
	if err != nil {
		return persistence.NewStoreError("SaveGraph", err, graph.TenantID, graph.ID)
	}

	return nil
}

func (fp *Persistence) DeleteGraph(_ context.Context, tenantID, flowID string) error {
	path, err := fp.path(flowsDir, tenantID, flowID+".json")
	if err != nil {
		return persistence.NewStoreError("DeleteGraph", err, tenantID, flowID)
	}

	err = os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return persistence.NewStoreError("DeleteGraph", err, tenantID, flowID)
	}

	return nil
}

func (fp *Persistence) allTriggers(tenantID string) (string, []*models.Trigger, error) {
	path, err := fp.path(triggersDir, tenantID+".json")
	if err != nil {
		return "", nil, err
	}

	var triggers []*models.Trigger

	_, err = readJSON(path, &triggers)

	return path, triggers, err
}

func (fp *Persistence) Triggers(_ context.Context, tenantID, channelID string) ([]*models.Trigger, error) {
	_, triggers, err := fp.allTriggers(tenantID)
	if err != nil {
		return nil, persistence.NewStoreError("Triggers", err, tenantID)
	}

	return slices.DeleteFunc(triggers, func(t *models.Trigger) bool {
		return !t.Enabled() || !t.AppliesTo(channelID)
	}), nil
}

// SaveTrigger replaces a trigger with the same id or appends a new one.
func (fp *Persistence) SaveTrigger(_ context.Context, trigger *models.Trigger) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path, triggers, err := fp.allTriggers(trigger.TenantID)
	if err != nil {
		return persistence.NewStoreError("SaveTrigger", err, trigger.TenantID, trigger.ID)
	}

	idx := slices.IndexFunc(triggers, func(t *models.Trigger) bool { return t.ID != "" && t.ID == trigger.ID })
	if idx >= 0 {
		triggers[idx] = trigger
	} else {
		triggers = append(triggers, trigger)
	}

	err = writeJSON(path, triggers)
	if err != nil {
		return persistence.NewStoreError("SaveTrigger", err, trigger.TenantID, trigger.ID)
	}

	return nil
}

func (fp *Persistence) allDefaults(tenantID string) (string, []*models.DefaultFlows, error) {
	path, err := fp.path(defaultsDir, tenantID+".json")
	if err != nil {
		return "", nil, err
	}

	var defaults []*models.DefaultFlows

	_, err = readJSON(path, &defaults)

	return path, defaults, err
}

func (fp *Persistence) DefaultFlows(_ context.Context, tenantID, channelID string) (*models.DefaultFlows, error) {
	_, all, err := fp.allDefaults(tenantID)
	if err != nil {
		return nil, persistence.NewStoreError("DefaultFlows", err, tenantID)
	}

	var tenantWide *models.DefaultFlows

	for _, defaults := range all {
		switch defaults.ChannelID {
		case channelID:
			return defaults, nil
		case "":
			tenantWide = defaults
		}
	}

	return tenantWide, nil
}

func (fp *Persistence) SaveDefaultFlows(_ context.Context, defaults *models.DefaultFlows) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	path, all, err := fp.allDefaults(defaults.TenantID)
	if err != nil {
		return persistence.NewStoreError("SaveDefaultFlows", err, defaults.TenantID)
	}

	idx := slices.IndexFunc(all, func(d *models.DefaultFlows) bool { return d.ChannelID == defaults.ChannelID })
	if idx >= 0 {
		all[idx] = defaults
	} else {
		all = append(all, defaults)
	}

	err = writeJSON(path, all)
	if err != nil {
		return persistence.NewStoreError("SaveDefaultFlows", err, defaults.TenantID)
	}

	return nil
}
