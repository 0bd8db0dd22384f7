package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := NewInMemory(4)

	msg, err := NewCounterAdjust(CounterAdjust{StudentID: "s1", Delta: -1, RecordID: "a1"})
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, msg))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	select {
	case got := <-ch:
		adj, err := DecodeCounterAdjust(got)
		require.NoError(t, err)
		assert.Equal(t, "s1", adj.StudentID)
		assert.Equal(t, -1, adj.Delta)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestDecodeCounterAdjustRejects(t *testing.T) {
	_, err := DecodeCounterAdjust(Message{Type: "other", Body: []byte(`{}`)})
	assert.Error(t, err)
	_, err = DecodeCounterAdjust(Message{Type: TypeCounterAdjust, Body: []byte(`{"studentId":"s1"}`)})
	assert.Error(t, err)
	_, err = DecodeCounterAdjust(Message{Type: TypeCounterAdjust, Body: []byte(`nope`)})
	assert.Error(t, err)
}

func TestSerializeRoundTrip(t *testing.T) {
	msg := Message{Type: TypeCounterAdjust, Body: []byte(`{"note":"a|b"}`)}
	got, err := deserialize(serialize(msg))
	require.NoError(t, err)
	assert.Equal(t, msg, got)

	_, err = deserialize("no-separator")
	assert.Error(t, err)
}
