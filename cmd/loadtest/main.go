package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// loadtest hammers the compile endpoint with a rotating set of query
// phrasings and reports throughput and latency percentiles.
//
// Usage:
//
//	loadtest --url http://localhost:8080 --concurrency 16 --duration 30s [--api-key <key>]
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the query service")
	concurrency := flag.Int("concurrency", 16, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	apiKey := flag.String("api-key", "", "api key (optional)")
	flag.Parse()

	queries := []string{
		"action movies on netflix rated above 7",
		"comedy shows since 2015",
		"sci-fi films 1990-1999",
		"dramas rated 6-8.5 from the uk",
		"horror movies until 2010 on hulu",
		"anything good to watch tonight",
		"thrillers on disney+ rated 8+",
		"documentaries in 2020",
	}

	fmt.Printf("target: %s  workers: %d  duration: %s\n", *baseURL, *concurrency, *duration)

	var (
		total     atomic.Int64
		failures  atomic.Int64
		zeroYield atomic.Int64
		fragments atomic.Int64
		mu        sync.Mutex
		latsMs    []float64
	)

	client := &http.Client{Timeout: 10 * time.Second}
	deadline := time.Now().Add(*duration)

	var wg sync.WaitGroup
	for w := 0; w < *concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			i := worker
			for time.Now().Before(deadline) {
				query := queries[i%len(queries)]
				i++

				body, _ := json.Marshal(map[string]string{"text": query})
				req, err := http.NewRequest(http.MethodPost,
					*baseURL+"/api/v1/query/compile", bytes.NewReader(body))
				if err != nil {
					failures.Add(1)
					continue
				}
				req.Header.Set("Content-Type", "application/json")
				if *apiKey != "" {
					req.Header.Set("X-API-Key", *apiKey)
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)

				total.Add(1)
				if err != nil || resp.StatusCode != http.StatusOK {
					failures.Add(1)
					if resp != nil {
						resp.Body.Close()
					}
					continue
				}
				var compiled struct {
					Fragments []json.RawMessage `json:"fragments"`
				}
				if err := json.NewDecoder(resp.Body).Decode(&compiled); err == nil {
					fragments.Add(int64(len(compiled.Fragments)))
					if len(compiled.Fragments) == 0 {
						zeroYield.Add(1)
					}
				}
				resp.Body.Close()

				mu.Lock()
				latsMs = append(latsMs, float64(elapsed.Microseconds())/1000)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	n := total.Load()
	if n == 0 {
		fmt.Fprintln(os.Stderr, "no requests completed")
		os.Exit(1)
	}

	sort.Float64s(latsMs)
	fmt.Printf("\nrequests:  %d\n", n)
	fmt.Printf("failures:  %d (%.1f%%)\n", failures.Load(), float64(failures.Load())/float64(n)*100)
	fmt.Printf("rps:       %.0f\n", float64(n)/duration.Seconds())
	if len(latsMs) > 0 {
		fmt.Printf("latency:   p50=%.2fms  p95=%.2fms  p99=%.2fms  max=%.2fms\n",
			pct(latsMs, 50), pct(latsMs, 95), pct(latsMs, 99), latsMs[len(latsMs)-1])
	}
	if ok := len(latsMs); ok > 0 {
		fmt.Printf("fragments: avg=%.2f per compile, zero-yield=%d (%.1f%%)\n",
			float64(fragments.Load())/float64(ok), zeroYield.Load(),
			float64(zeroYield.Load())/float64(ok)*100)
	}
}

func pct(sorted []float64, p int) float64 {
	idx := p * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
