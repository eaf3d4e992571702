package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"example.com/tinyfeed/bench/stats"
	"example.com/tinyfeed/internal/models"
)

// client is a logged-in browser session.
type client struct {
	name string
	http *http.Client
}

func main() {
	// CLI flags
	var serverAddr string
	var U, F, P, concurrency, pollTimeout int
	var insecure bool

	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "server base URL")
	flag.IntVar(&U, "users", 50, "number of users to log in")
	flag.IntVar(&F, "follows", 10, "follows per user")
	flag.IntVar(&P, "posts", 100, "number of posts to publish")
	flag.IntVar(&concurrency, "c", 20, "concurrency for posting")
	flag.IntVar(&pollTimeout, "timeout", 10, "seconds to wait for a post to show up in a follower timeline")
	flag.BoolVar(&insecure, "insecure", false, "skip TLS verification")
	flag.Parse()

	transport := &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: insecure}}
	run := time.Now().UnixNano()

	// --- 1) Log users in; each keeps its own cookie jar ---
	fmt.Printf("Logging in %d users...\n", U)
	users := make([]*client, U)
	for i := range users {
		jar, _ := cookiejar.New(nil)
		c := &client{
			name: fmt.Sprintf("e2e-%d-%d", run, i),
			http: &http.Client{
				Transport: transport,
				Jar:       jar,
				Timeout:   10 * time.Second,
				CheckRedirect: func(*http.Request, []*http.Request) error {
					return http.ErrUseLastResponse
				},
			},
		}
		if err := c.form(serverAddr+"/login", url.Values{"username": {c.name}}); err != nil {
			fmt.Printf("login error: %v\n", err)
			os.Exit(1)
		}
		users[i] = c
	}

	// --- 2) Follow random users; followers[author] lists who should see author's posts ---
	fmt.Printf("Creating follows (%d per user)...\n", F)
	followers := make(map[string][]*client)
	for _, u := range users {
		for j := 0; j < F; j++ {
			target := users[rand.Intn(len(users))]
			if target == u {
				continue
			}
			if err := u.form(serverAddr+"/follow", url.Values{"to_follow": {target.name}}); err != nil {
				fmt.Printf("follow error: %v\n", err)
				os.Exit(1)
			}
			followers[target.name] = append(followers[target.name], u)
		}
	}

	// --- 3) Publish posts concurrently ---
	fmt.Printf("Publishing %d posts with concurrency %d...\n", P, concurrency)
	type postRecord struct {
		author  string
		content string
		sent    time.Time
	}
	postsCh := make(chan postRecord, P)
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i := 0; i < P; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			author := users[rand.Intn(len(users))]
			content := fmt.Sprintf("e2e post %d-%d", run, i)
			sent := time.Now()
			if err := author.form(serverAddr+"/post", url.Values{"content": {content}}); err != nil {
				fmt.Printf("post error: %v\n", err)
				return
			}
			postsCh <- postRecord{author: author.name, content: content, sent: sent}
		}(i)
	}
	wg.Wait()
	close(postsCh)

	// --- 4) Poll follower timelines until each post is visible ---
	fmt.Println("Checking timeline visibility...")
	var latencies []float64
	var mu sync.Mutex
	var fails int

	for pr := range postsCh {
		for _, f := range followers[pr.author] {
			wg.Add(1)
			go func(pr postRecord, f *client) {
				defer wg.Done()
				deadline := time.Now().Add(time.Duration(pollTimeout) * time.Second)
				for time.Now().Before(deadline) {
					if f.sees(serverAddr, pr.content) {
						mu.Lock()
						latencies = append(latencies, time.Since(pr.sent).Seconds()*1000)
						mu.Unlock()
						return
					}
					time.Sleep(200 * time.Millisecond)
				}
				mu.Lock()
				fails++
				mu.Unlock()
			}(pr, f)
		}
	}
	wg.Wait()

	// --- 5) Report ---
	if len(latencies) == 0 {
		fmt.Println("No visible posts recorded.")
		return
	}
	fmt.Printf("Visibility stats (ms): %s fails=%d\n", stats.Summarize(latencies, 1.0), fails)
	if err := stats.WriteCSV("e2e_latencies.csv", latencies); err != nil {
		fmt.Printf("csv error: %v\n", err)
		return
	}
	fmt.Println("Saved e2e_latencies.csv")
}

// form posts values and treats anything but a redirect or 2xx as failure.
func (c *client) form(u string, values url.Values) error {
	resp, err := c.http.PostForm(u, values)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s: status %d", u, resp.StatusCode)
	}
	return nil
}

// sees reports whether content is on the first page of c's timeline.
func (c *client) sees(server, content string) bool {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet,
		server+"/api/timeline?limit=100&user="+url.QueryEscape(c.name), nil)
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	var posts []models.Post
	if err := json.NewDecoder(resp.Body).Decode(&posts); err != nil {
		return false
	}
	for _, p := range posts {
		if p.Content == content {
			return true
		}
	}
	return false
}
