// Command smoke probes a running tracklight-api instance and reports
// which surfaces respond. Useful after a deploy or a schema change.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type probe struct {
	Name     string
	Method   string
	Path     string
	Body     string
	WantCode int
}

type result struct {
	Probe    probe
	Status   int
	Duration time.Duration
	Err      error
}

func main() {
	var (
		base        string
		timeout     time.Duration
		triggerSync bool
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.BoolVar(&triggerSync, "sync", false, "also trigger a sync pass (mutating)")
	flag.Parse()

	today := time.Now().UTC().Format("2006-01-02")
	probes := []probe{
		{Name: "health", Method: http.MethodGet, Path: "/health", WantCode: http.StatusOK},
		{Name: "ready", Method: http.MethodGet, Path: "/ready", WantCode: http.StatusOK},
		{Name: "metrics", Method: http.MethodGet, Path: "/metrics", WantCode: http.StatusOK},
		{Name: "calendars", Method: http.MethodGet, Path: "/api/v1/calendars", WantCode: http.StatusOK},
		{Name: "categories", Method: http.MethodGet, Path: "/api/v1/categories", WantCode: http.StatusOK},
		{Name: "category tree", Method: http.MethodGet, Path: "/api/v1/categories/tree", WantCode: http.StatusOK},
		{Name: "event page", Method: http.MethodGet, Path: "/api/v1/events?limit=1", WantCode: http.StatusOK},
		{Name: "day layout", Method: http.MethodGet, Path: "/api/v1/layout/day?date=" + today, WantCode: http.StatusOK},
		{Name: "sync status", Method: http.MethodGet, Path: "/api/v1/sync/status", WantCode: http.StatusOK},
	}
	if triggerSync {
		probes = append(probes, probe{
			Name:     "sync trigger",
			Method:   http.MethodPost,
			Path:     "/api/v1/sync",
			Body:     `{"force_resync":false}`,
			WantCode: http.StatusOK,
		})
	}

	client := &http.Client{Timeout: timeout}
	failures := 0
	results := make([]result, 0, len(probes))
	for _, p := range probes {
		res := run(client, base, p)
		if res.Err != nil || res.Status != p.WantCode {
			failures++
		}
		results = append(results, res)
	}

	report(results)
	if failures > 0 {
		fmt.Printf("%d of %d probes failed\n", failures, len(probes))
		os.Exit(1)
	}
	fmt.Printf("all %d probes passed\n", len(probes))
}

func run(client *http.Client, base string, p probe) result {
	res := result{Probe: p}

	url := strings.TrimRight(base, "/") + p.Path
	var body io.Reader
	if p.Body != "" {
		body = bytes.NewBufferString(p.Body)
	}
	req, err := http.NewRequest(p.Method, url, body)
	if err != nil {
		res.Err = err
		return res
	}
	if p.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	if resp.StatusCode != p.WantCode {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		res.Err = fmt.Errorf("unexpected response: %s", firstLine(payload))
	}
	return res
}

func firstLine(payload []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if i := bytes.IndexByte(payload, '\n'); i >= 0 {
		payload = payload[:i]
	}
	return string(payload)
}

func report(results []result) {
	for _, res := range results {
		mark := "ok"
		if res.Err != nil || res.Status != res.Probe.WantCode {
			mark = "FAIL"
		}
		fmt.Printf("[%-4s] %-14s %s %s (%d, %s)\n",
			mark, res.Probe.Name, res.Probe.Method, res.Probe.Path, res.Status, res.Duration.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Printf("       %v\n", res.Err)
		}
	}
}
