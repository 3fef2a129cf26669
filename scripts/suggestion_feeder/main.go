package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// candidate mirrors the suggestion ingest payload. SuggestedData is kept
// raw so the feed file controls the exact payload shape.
type candidate struct {
	Type            string          `json:"type"`
	SourceReference string          `json:"sourceReference"`
	Confidence      float64         `json:"confidence"`
	Priority        string          `json:"priority,omitempty"`
	SuggestedData   json.RawMessage `json:"suggestedData"`
}

type feedFile struct {
	Suggestions []candidate `json:"suggestions"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type result struct {
	Candidate candidate
	ID        string
	Status    int
	Duration  time.Duration
	Error     error
}

func main() {
	var (
		base     string
		prefix   string
		feedPath string
		email    string
		password string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "Studio Ops API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.StringVar(&feedPath, "feed", filepath.Join("scripts", "suggestion_feeder", "feed.json"), "Path to JSON feed file")
	flag.StringVar(&email, "email", os.Getenv("FEEDER_EMAIL"), "Service account email")
	flag.StringVar(&password, "password", os.Getenv("FEEDER_PASSWORD"), "Service account password")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if email == "" || password == "" {
		log.Fatal("service account credentials required (-email/-password or FEEDER_EMAIL/FEEDER_PASSWORD)")
	}

	candidates, err := loadFeed(feedPath)
	if err != nil {
		log.Fatalf("failed to load feed: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	apiBase := strings.TrimRight(base, "/") + prefix

	token, err := login(client, apiBase, email, password)
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}

	var results []result
	failed := 0
	for _, cand := range candidates {
		res := postSuggestion(client, apiBase, token, cand)
		if res.Error != nil {
			failed++
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Fed %d suggestions, %d failed\n", len(results)-failed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func loadFeed(path string) ([]candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var feed feedFile
	if err := json.Unmarshal(data, &feed); err != nil {
		return nil, err
	}
	if len(feed.Suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions defined in %s", path)
	}
	return feed.Suggestions, nil
}

func login(client *http.Client, apiBase, email, password string) (string, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(apiBase+"/auth/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		return "", err
	}
	if env.Error != nil {
		return "", fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	var data struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", fmt.Errorf("decode login data: %w", err)
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("login response missing access token")
	}
	return data.AccessToken, nil
}

func postSuggestion(client *http.Client, apiBase, token string, cand candidate) result {
	res := result{Candidate: cand}

	payload, err := json.Marshal(cand)
	if err != nil {
		res.Error = fmt.Errorf("marshal candidate: %w", err)
		return res
	}
	req, err := http.NewRequest(http.MethodPost, apiBase+"/suggestions", bytes.NewReader(payload))
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	res.Status = resp.StatusCode
	env, err := decodeEnvelope(resp.Body)
	if err != nil {
		res.Error = err
		return res
	}
	if env.Error != nil {
		res.Error = fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		return res
	}
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		res.Error = fmt.Errorf("decode suggestion data: %w", err)
		return res
	}
	res.ID = data.ID
	return res
}

func decodeEnvelope(body io.Reader) (*envelope, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode response envelope: %w", err)
	}
	return &env, nil
}

func printReport(results []result) {
	fmt.Println("Suggestion Feed Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Candidate.Type, res.Candidate.SourceReference)
		if res.Error != nil {
			fmt.Printf("  Status: %d | Error: %v\n", res.Status, res.Error)
		} else {
			fmt.Printf("  Status: %d | ID: %s (%s)\n", res.Status, res.ID, res.Duration)
		}
	}
}
