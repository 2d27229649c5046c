package eventbus

import (
	"context"
	"testing"

	"github.com/KallebyX/simao-sub001/pkg/channels/gochannel"
	"github.com/KallebyX/simao-sub001/pkg/events"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_RelaysBetweenInstances(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(testLogger()))
	require.NoError(t, err)

	busA := New(16, testLogger())
	busB := New(16, testLogger())

	bridgeA := NewBridge(busA, NewWatermillTransport(pub, sub, "", testLogger()), "instance-a", testLogger())
	bridgeB := NewBridge(busB, NewWatermillTransport(pub, sub, "", testLogger()), "instance-b", testLogger())

	require.NoError(t, bridgeA.Start(ctx))
	require.NoError(t, bridgeB.Start(ctx))

	localA, err := busA.Subscribe("acme", "dash-a", []string{events.TopicTicket})
	require.NoError(t, err)

	remoteB, err := busB.Subscribe("acme", "dash-b", []string{events.TopicTicket})
	require.NoError(t, err)

	otherTenant, err := busB.Subscribe("globex", "dash-g", []string{events.TopicTicket})
	require.NoError(t, err)

	published := events.TicketUpdated(events.TicketState{TenantID: "acme", ConversationID: "c1"})
	require.NoError(t, busA.Publish(ctx, "acme", events.TopicTicket, published))

	assert.Equal(t, published.ID, receive(t, localA).ID)

	relayed := receive(t, remoteB)
	assert.Equal(t, published.ID, relayed.ID)
	assert.Equal(t, events.TopicTicket, relayed.Topic)

	// The origin instance does not deliver its own event twice.
	assertNothing(t, localA)
	assertNothing(t, otherTenant)

	require.NoError(t, bridgeA.Close())
}
