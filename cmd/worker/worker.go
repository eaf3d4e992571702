package worker

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	appkafka "example.com/tinyfeed/internal/broker"
	"example.com/tinyfeed/internal/logger"
	"example.com/tinyfeed/internal/seed"
	"example.com/tinyfeed/internal/store"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// Worker consumes seed jobs from Kafka and runs them against the store.
type Worker struct {
	store        store.Store
	seeder       *seed.Seeder
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(st store.Store, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        st,
		seeder:       seed.New(st, nil),
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			select {
			case jobs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// processLoop runs queued seed jobs until the queue is closed.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.Handle(ctx, msg); err != nil {
				logg.Error("worker", "Seed job failed", err)
			}
		}
	}
}

// Handle decodes and runs a single seed job.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) error {
	p, err := appkafka.DecodeSeedJob(msg)
	if err != nil {
		return err
	}
	res, err := w.seeder.Run(ctx, p)
	if err != nil {
		return fmt.Errorf("seed job with prefix %q: %w", p.Prefix, err)
	}
	logg.Info("worker", fmt.Sprintf("Seed job done: %d users created, %d posts", res.UsersCreated, res.PostsCreated))
	return nil
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the store.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing store")
	return w.store.Close()
}
