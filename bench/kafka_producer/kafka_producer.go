package main

import (
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/tinyfeed/internal/broker"
	"example.com/tinyfeed/internal/seed"
	"github.com/google/uuid"
)

// Publishes seed jobs straight to the topic consumed by `tinyfeed worker`.
func main() {
	var broker, topic string
	var jobs, numWorkers, users, posts int

	flag.StringVar(&broker, "broker", "localhost:9092", "Kafka broker")
	flag.StringVar(&topic, "topic", "seed-jobs", "seed job topic")
	flag.IntVar(&jobs, "jobs", 1000, "number of seed jobs to publish")
	flag.IntVar(&numWorkers, "workers", 4, "parallel producers")
	flag.IntVar(&users, "users", 10, "users per job")
	flag.IntVar(&posts, "posts", 100, "posts per job")
	flag.Parse()

	// One run id keeps the prefixes of this run apart from earlier ones
	runID := uuid.NewString()[:8]
	start := time.Now()

	var successCount, failCount uint64
	queue := make(chan int, jobs)
	var wg sync.WaitGroup

	// --- Start producer goroutines, one leader connection each ---
	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := appkafka.NewKafkaWriter(appkafka.KafkaConfig{
				Brokers: []string{broker},
				Topic:   topic,
			})
			if err != nil {
				fmt.Printf("dial error: %v\n", err)
				for range queue {
					atomic.AddUint64(&failCount, 1)
				}
				return
			}
			defer w.Close()

			for i := range queue {
				p := seed.Params{
					Users:      users,
					Posts:      posts,
					FollowsMin: 1,
					FollowsMax: 5,
					Prefix:     fmt.Sprintf("bench-%s-%d-", runID, i),
				}
				if err := appkafka.PublishSeedJob(w, p); err != nil {
					atomic.AddUint64(&failCount, 1)
					fmt.Printf("write error: %v\n", err)
					continue
				}
				atomic.AddUint64(&successCount, 1)
			}
		}()
	}

	for i := 0; i < jobs; i++ {
		queue <- i
	}
	close(queue)
	wg.Wait()

	// --- Benchmark results ---
	elapsed := time.Since(start)
	fmt.Printf("Total jobs: %d\n", jobs)
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f jobs/s\n", float64(successCount)/elapsed.Seconds())
}
