package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

type latestRow struct {
	TargetID string `json:"target_id"`
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Result   struct {
		Succeeded     bool      `json:"succeeded"`
		HTTPStatus    *int      `json:"http_status"`
		LatencyMS     float64   `json:"latency_ms"`
		Attempts      int       `json:"attempts"`
		FailureReason string    `json:"failure_reason"`
		CheckedAt     time.Time `json:"checked_at"`
	} `json:"result"`
}

func main() {
	runNow := flag.Bool("run", false, "trigger a check pass first (needs an admin key)")
	flag.Parse()

	api := strings.TrimRight(os.Getenv("API_BASE"), "/")
	if api == "" {
		api = "http://localhost:8080"
	}
	key := os.Getenv("API_KEY")
	client := &http.Client{Timeout: 2 * time.Minute}

	if *runNow {
		resp, err := call(client, http.MethodPost, api+"/api/checks/run", key)
		if err != nil {
			fmt.Println("Error contacting API:", err)
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Println("API returned status:", resp.Status)
			os.Exit(1)
		}
	}

	resp, err := call(client, http.MethodGet, api+"/api/results/latest", key)
	if err != nil {
		fmt.Println("Error contacting API:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Println("API returned status:", resp.Status)
		os.Exit(1)
	}

	var rows []latestRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		fmt.Println("Bad response:", err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		fmt.Println("No results yet.")
		return
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tKIND\tTARGET\tHTTP\tLATENCY\tTRIES\tREASON\tCHECKED")
	for _, r := range rows {
		state := "✓ UP"
		if !r.Result.Succeeded {
			state = "✗ DOWN"
		}
		status := "-"
		if r.Result.HTTPStatus != nil {
			status = fmt.Sprint(*r.Result.HTTPStatus)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.0fms\t%d\t%s\t%s\n",
			state, r.Kind, r.URL, status, r.Result.LatencyMS, r.Result.Attempts,
			r.Result.FailureReason, r.Result.CheckedAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func call(c *http.Client, method, url, key string) (*http.Response, error) {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	return c.Do(req)
}
