// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/registry"
)

// NewRegistry registers the built-in node kinds with the configured
// defaults.
func NewRegistry(log *slog.Logger, cfg config.FlowConfig) *registry.Registry {
	reg := registry.NewRegistry(log)

	defaults := registry.DefaultNodeSettings()
	if cfg.DefaultProbability > 0 {
		defaults.Probability = cfg.DefaultProbability
	}

	if cfg.ConditionTimeout > 0 {
		defaults.ConditionTimeout = cfg.ConditionTimeout
	}

	reg.RegisterDefaultNodes(defaults)

	return reg
}
