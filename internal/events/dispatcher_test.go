package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDispatcherDeliversToEveryHandler(t *testing.T) {
	d := NewInMemoryDispatcher(zap.NewNop())

	var got []string
	d.Subscribe(EventTransferCompleted, func(_ context.Context, e Event) error {
		got = append(got, "first:"+e.ID)
		return errors.New("handler down")
	})
	d.Subscribe(EventTransferCompleted, func(_ context.Context, e Event) error {
		got = append(got, "second:"+e.ID)
		return nil
	})
	d.Subscribe(EventTripVerified, func(context.Context, Event) error {
		t.Fatal("unrelated handler invoked")
		return nil
	})

	err := d.Publish(context.Background(), Event{ID: "e1", Type: EventTransferCompleted})
	require.NoError(t, err)
	assert.Equal(t, []string{"first:e1", "second:e1"}, got)
}
