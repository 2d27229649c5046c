package cmd

import (
	"log/slog"

	"github.com/KallebyX/simao-sub001/pkg/config"
	"github.com/KallebyX/simao-sub001/pkg/effects"
	"github.com/KallebyX/simao-sub001/pkg/eventbus"
)

// NewEffectsExecutor wires the outbound side of the worker pool. Without a
// gateway URL outbound messages are only logged.
func NewEffectsExecutor(channel config.ChannelConfig, pool config.PoolConfig, publisher eventbus.Publisher, logger *slog.Logger) *effects.Executor {
	var messages effects.MessageSender = effects.NewLogMessageSender(logger)
	if channel.GatewayURL != "" {
		messages = effects.NewHTTPMessageSender(channel.GatewayURL, channel.Token, channel.Timeout)
	}

	return effects.NewExecutor(
		messages,
		effects.NewHTTPWebhookCaller(nil, pool.EffectTimeout),
		effects.NewBusQueueRouter(publisher),
		publisher,
		logger,
	)
}
