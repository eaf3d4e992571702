package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	appkafka "example.com/tinyfeed/internal/broker"
	"example.com/tinyfeed/internal/seed"
	"example.com/tinyfeed/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessage(t *testing.T, p seed.Params) kafka.Message {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(appkafka.SeedJobKey), Value: data}
}

// ---------- Positive test ----------

func TestWorker_HandleSeedJob(t *testing.T) {
	st := store.NewMemory()
	w := New(st, &appkafka.MockKafka{}, 1, 1)

	msg := seedMessage(t, seed.Params{Users: 4, Posts: 12, FollowsMin: 1, FollowsMax: 2, Prefix: "w"})
	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 4, st.UserCount())
	assert.Equal(t, 12, st.PostCount())

	// replaying the job only appends posts
	require.NoError(t, w.Handle(context.Background(), msg))
	assert.Equal(t, 4, st.UserCount())
	assert.Equal(t, 24, st.PostCount())
}

// ---------- Negative tests ----------

func TestWorker_InvalidMessages(t *testing.T) {
	st := store.NewMemory()
	w := New(st, &appkafka.MockKafka{}, 1, 1)
	ctx := context.Background()

	assert.Error(t, w.Handle(ctx, kafka.Message{Key: []byte("post_created"), Value: []byte(`{}`)}))
	assert.Error(t, w.Handle(ctx, kafka.Message{Key: []byte(appkafka.SeedJobKey), Value: []byte("{")}))

	err := w.Handle(ctx, seedMessage(t, seed.Params{Users: 0, Prefix: "x"}))
	assert.True(t, errors.Is(err, seed.ErrInvalidParams))
	assert.Equal(t, 0, st.UserCount())
}

func TestWorker_StoreFailure(t *testing.T) {
	w := New(store.FailingStore{}, &appkafka.MockKafka{}, 1, 1)
	err := w.Handle(context.Background(), seedMessage(t, seed.DefaultParams()))
	assert.Error(t, err)
}

func TestWorker_KafkaReadErrorStopsOnCancel(t *testing.T) {
	w := New(store.NewMemory(), &appkafka.MockKafkaFail{}, 2, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker kept retrying after cancellation")
	}
}

func TestWorker_NewDefaults(t *testing.T) {
	w := New(store.NewMemory(), &appkafka.MockKafka{}, 0, 0)
	require.NotNil(t, w.seeder)
	assert.Positive(t, w.workerCount)
	assert.Equal(t, w.workerCount*10, w.jobQueueSize)
}
