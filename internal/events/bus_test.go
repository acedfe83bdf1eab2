package events_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-gateway/internal/events"
)

func TestEmitReachesSubscribers(t *testing.T) {
	t.Parallel()

	bus := &events.Bus{}
	var got []events.Event
	bus.Subscribe(events.TopicCartUpdated, func(_ context.Context, e events.Event) {
		got = append(got, e)
	})

	bus.Emit(context.Background(), events.TopicCartUpdated, "payload")
	require.Len(t, got, 1)
	require.Equal(t, events.TopicCartUpdated, got[0].Topic)
	require.Equal(t, "payload", got[0].Payload)
}

func TestEmitIgnoresOtherTopics(t *testing.T) {
	t.Parallel()

	bus := &events.Bus{}
	calls := 0
	bus.Subscribe(events.TopicRouteUpdated, func(context.Context, events.Event) { calls++ })

	bus.Emit(context.Background(), events.TopicVoucherUpdated, nil)
	require.Zero(t, calls)
}

func TestEmitFansOutInOrder(t *testing.T) {
	t.Parallel()

	bus := &events.Bus{}
	var order []int
	bus.Subscribe(events.TopicPricingUpdated, func(context.Context, events.Event) { order = append(order, 1) })
	bus.Subscribe(events.TopicPricingUpdated, func(context.Context, events.Event) { order = append(order, 2) })

	bus.Emit(context.Background(), events.TopicPricingUpdated, nil)
	require.Equal(t, []int{1, 2}, order)
}

func TestNilBusEmitIsSafe(t *testing.T) {
	t.Parallel()

	var bus *events.Bus
	bus.Emit(context.Background(), events.TopicCartUpdated, nil)
}
