package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"example.com/tinyfeed/bench/stats"
	"example.com/tinyfeed/internal/seed"
)

// Timeline read load: seeds a population through /admin/seed, then hammers
// /api/timeline for random seeded users.
func main() {
	// --- Command-line flags ---
	var server, token, prefix, csvFile string
	var duration, concurrency, users, posts, limit int
	var trimPercent float64
	var insecure bool

	flag.StringVar(&server, "server", "http://localhost:8080", "server base URL")
	flag.StringVar(&token, "token", "", "seed token")
	flag.StringVar(&prefix, "prefix", "load", "seeded user name prefix")
	flag.IntVar(&users, "users", 200, "users to seed")
	flag.IntVar(&posts, "posts", 5000, "posts to seed")
	flag.IntVar(&limit, "limit", 20, "timeline limit per request")
	flag.IntVar(&duration, "duration", 30, "duration in seconds")
	flag.IntVar(&concurrency, "c", 50, "number of concurrent goroutines")
	flag.StringVar(&csvFile, "csv", "latencies.csv", "CSV file to save latencies")
	flag.Float64Var(&trimPercent, "trim", 1.0, "percent of latency to trim from top and bottom for trimmed mean")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS verification")
	flag.Parse()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure},
		},
		Timeout: 60 * time.Second,
	}

	// --- Seed population ---
	fmt.Printf("Seeding %d users / %d posts...\n", users, posts)
	form := url.Values{
		"token":  {token},
		"users":  {strconv.Itoa(users)},
		"posts":  {strconv.Itoa(posts)},
		"prefix": {prefix},
	}
	resp, err := client.PostForm(server+"/admin/seed", form)
	if err != nil {
		panic(fmt.Sprintf("seed request failed: %v", err))
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		panic(fmt.Sprintf("seed rejected with %d: %s", resp.StatusCode, body))
	}
	fmt.Printf("Seeded: %s\n", body)

	// --- Read load ---
	stopTime := time.Now().Add(time.Duration(duration) * time.Second)
	var wg sync.WaitGroup
	var requests, successes, errors4xx, errors5xx int64
	latencySlices := make([][]float64, concurrency)

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(idx)))
			var local []float64

			for time.Now().Before(stopTime) {
				user := seed.UserName(prefix, rnd.Intn(users))
				u := server + "/api/timeline?user=" + url.QueryEscape(user) + "&limit=" + strconv.Itoa(limit)
				req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, u, nil)

				start := time.Now()
				resp, err := client.Do(req)
				local = append(local, time.Since(start).Seconds()*1000)
				atomic.AddInt64(&requests, 1)
				if err != nil {
					fmt.Printf("Request error: %v\n", err)
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				switch {
				case resp.StatusCode < 300:
					atomic.AddInt64(&successes, 1)
				case resp.StatusCode < 500:
					atomic.AddInt64(&errors4xx, 1)
				default:
					atomic.AddInt64(&errors5xx, 1)
				}
			}
			latencySlices[idx] = local
		}(i)
	}
	wg.Wait()

	var all []float64
	for _, s := range latencySlices {
		all = append(all, s...)
	}

	fmt.Printf("Requests: %d  Successes: %d  4xx: %d  5xx: %d\n", requests, successes, errors4xx, errors5xx)
	fmt.Printf("Latency (ms): %s\n", stats.Summarize(all, trimPercent))

	if err := stats.WriteCSV(csvFile, all); err != nil {
		fmt.Printf("Failed to write CSV file: %v\n", err)
		return
	}
	fmt.Printf("Saved latencies to %s\n", csvFile)
}
