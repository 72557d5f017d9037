// Minimal end-to-end integration test for the research API.
//
// Run from repo root against a fully configured server (MySQL or Redis
// needed for run retrieval):
//
//	go run ./scripts/api
//
// Environment:
//
//	API_URL – base URL (default http://localhost:8098/v1)
//	API_KEY – preshared key for /auth/token
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
)

var (
	baseURL = getenv("API_URL", "http://localhost:8098/v1")
	apiKey  = os.Getenv("API_KEY")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	if apiKey == "" {
		log.Fatal("API_KEY must be set")
	}

	token := issueToken()

	runID, citations := runResearch(token)
	checkRunVisible(token, runID)
	if len(citations) > 0 {
		checkSnapshot(token, citations[0])
	}

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- auth

func issueToken() string {
	var resp struct{ Token string }
	doJSON("POST", "/auth/token", map[string]any{"api_key": apiKey}, &resp, http.StatusOK)
	if resp.Token == "" {
		log.Fatal("auth: empty token")
	}
	return resp.Token
}

// ----------------------------- research

func runResearch(tok string) (string, []string) {
	var resp struct {
		RunID       string `json:"run_id"`
		FinalAnswer string `json:"final_answer"`
		Citations   []struct {
			URL string `json:"url"`
		} `json:"citations"`
	}
	doAuth(tok, "POST", "/research", map[string]any{
		"question": "integration probe: what is the ticker symbol of the S&P 500 trust ETF?",
		"sources":  2,
	}, &resp, http.StatusOK)
	if resp.RunID == "" {
		log.Fatal("research: empty run id")
	}
	if resp.FinalAnswer == "" {
		log.Fatal("research: empty final answer")
	}
	urls := make([]string, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		urls = append(urls, c.URL)
	}
	return resp.RunID, urls
}

func checkRunVisible(tok, id string) {
	var rep struct {
		RunID string `json:"run_id"`
	}
	doAuth(tok, "GET", "/runs/"+id, nil, &rep, http.StatusOK)
	if rep.RunID != id {
		log.Fatalf("runs: want %s got %s", id, rep.RunID)
	}

	var list struct {
		Runs []struct {
			ID string `json:"id"`
		} `json:"runs"`
	}
	doAuth(tok, "GET", "/runs", nil, &list, http.StatusOK)
}

// ----------------------------- snapshots

func checkSnapshot(tok, snapURL string) {
	var resp struct {
		TTLClass  string `json:"ttl_class"`
		Revisions []any  `json:"revisions"`
	}
	doAuth(tok, "GET", "/snapshots?url="+url.QueryEscape(snapURL), nil, &resp, http.StatusOK)
	if len(resp.Revisions) == 0 {
		log.Fatalf("snapshots: no revisions for %s", snapURL)
	}
}

// ----------------------------- helpers

func doAuth(token, method, path string, body, out any, want int) {
	doReq(method, path, token, body, out, want)
}

func doJSON(method, path string, body, out any, want int) {
	doReq(method, path, "", body, out, want)
}

func doReq(method, path, token string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
