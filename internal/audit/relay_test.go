package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"facecards/internal/platform/kafka"
)

type fakeOutbox struct {
	pending   []OutboxEntry
	processed []string
	fetchErr  error
}

func (f *fakeOutbox) FetchUnprocessed(_ context.Context, limit int) ([]OutboxEntry, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	n := min(limit, len(f.pending))
	return append([]OutboxEntry(nil), f.pending[:n]...), nil
}

func (f *fakeOutbox) MarkProcessed(_ context.Context, ids []string, _ time.Time) error {
	f.processed = append(f.processed, ids...)
	done := map[string]bool{}
	for _, id := range ids {
		done[id] = true
	}
	var rest []OutboxEntry
	for _, e := range f.pending {
		if !done[e.ID] {
			rest = append(rest, e)
		}
	}
	f.pending = rest
	return nil
}

type fakeProducer struct {
	published []kafka.Message
	err       error
}

func (f *fakeProducer) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msgs...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayOnce(t *testing.T) {
	outbox := &fakeOutbox{pending: []OutboxEntry{
		{ID: "e1", AggregateType: "roster", AggregateID: "leader-1", EventType: "refresh.applied", Payload: []byte(`{"id":"e1"}`)},
		{ID: "e2", AggregateType: "audit", AggregateID: "e2", EventType: "admin.login", Payload: []byte(`{"id":"e2"}`)},
	}}
	producer := &fakeProducer{}
	relay := NewRelay(outbox, producer, time.Second, 10, discardLogger())

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"e1", "e2"}, outbox.processed)
	require.Len(t, producer.published, 2)
	assert.Equal(t, "leader-1", producer.published[0].Key)
	assert.Equal(t, "e1", producer.published[0].Headers["event_id"])
	assert.Equal(t, "refresh.applied", producer.published[0].Headers["event_type"])
}

func TestRelayOnce_PublishFailureLeavesRowsPending(t *testing.T) {
	outbox := &fakeOutbox{pending: []OutboxEntry{{ID: "e1", Payload: []byte(`{}`)}}}
	producer := &fakeProducer{err: errors.New("broker down")}
	relay := NewRelay(outbox, producer, time.Second, 10, discardLogger())

	_, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Empty(t, outbox.processed)
	assert.Len(t, outbox.pending, 1)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	outbox := &fakeOutbox{}
	relay := NewRelay(outbox, &fakeProducer{}, 5*time.Millisecond, 10, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestStamp(t *testing.T) {
	e := Stamp(context.Background(), Event{Action: ActionAdminLogin})
	assert.False(t, e.Timestamp.IsZero())
	assert.NotEmpty(t, e.ID)

	kept := Stamp(context.Background(), Event{ID: "fixed"})
	assert.Equal(t, "fixed", kept.ID)
}
