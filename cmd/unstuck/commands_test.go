package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"problem not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestNewCommand_Text(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /ingest": `{"problemId":"p-123"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/ingest", map[string]any{"text": "solve 2x+3=11"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		ProblemID string `json:"problemId"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.ProblemID != "p-123" {
		t.Errorf("problemId = %q, want p-123", result.ProblemID)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["text"] != "solve 2x+3=11" {
		t.Errorf("body.text = %v", body["text"])
	}
}

func TestNewCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"new"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestImageDataURL(t *testing.T) {
	// Minimal valid PNG header so content detection sees an image.
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	path := filepath.Join(t.TempDir(), "problem.png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		t.Fatal(err)
	}

	url, err := imageDataURL(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("url = %q, want data:image/png prefix", url)
	}

	encoded := strings.TrimPrefix(url, "data:image/png;base64,")
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if !bytes.Equal(decoded, png) {
		t.Error("decoded payload differs from file contents")
	}
}

func TestImageDataURL_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := imageDataURL(path)
	if err == nil {
		t.Fatal("expected error for non-image file")
	}
	if !strings.Contains(err.Error(), "does not look like an image") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestStuckCommand_RequestShape(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /stuck": `{"subproblemId":"s-1","subproblemText":"simpler","tutorIntro":"hi","tutorSubproblemMessage":"try this"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/stuck", map[string]any{
		"problemId": "p-123",
		"userText":  "I tried substitution",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		SubproblemID string `json:"subproblemId"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result.SubproblemID != "s-1" {
		t.Errorf("subproblemId = %q", result.SubproblemID)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["problemId"] != "p-123" {
		t.Errorf("body.problemId = %v", body["problemId"])
	}
}

func TestRecentCommand_Limit(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /recent-problems": `{"problems":[{"id":"11112222-0000-0000-0000-000000000000","title":"Linear Equation","category":"Algebra","status":"active","lastActiveAt":"2026-08-30T12:00:00Z","createdAt":"2026-08-30T11:00:00Z"}]}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/recent-problems?limit=3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body struct {
		Problems []recentEntry `json:"problems"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(body.Problems) != 1 {
		t.Fatalf("expected 1 problem, got %d", len(body.Problems))
	}
	if body.Problems[0].Title != "Linear Equation" {
		t.Errorf("title = %q", body.Problems[0].Title)
	}

	if !strings.Contains(ts.requests[0].Path, "limit=3") {
		t.Errorf("path = %q, want limit=3", ts.requests[0].Path)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"message":"an image URL or problem text is required","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}

	resp, err := client.post(ctx, "/ingest", map[string]any{})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %q, want it to contain '400'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestWorkSession_StuckPushesAndSolvePops(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /problem/root-id": `{"id":"root-id","text":"solve 2x+3=11","title":"Linear Equation","category":"Algebra","status":"active","isSubproblem":false}`,
		"POST /stuck":          `{"subproblemId":"sub-id-12345","subproblemText":"solve x+3=7","tutorIntro":"hi","tutorSubproblemMessage":"try this"}`,
		"POST /complete":       `{"solved":true,"tutorMessage":"nice"}`,
	})

	input := filepath.Join(t.TempDir(), "input")
	script := "stuck I tried dividing first\nsolve x = 4\nquit\n"
	if err := os.WriteFile(input, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(input)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := runWorkSession(ctx, ts.client(), "root-id", f); err != nil {
		t.Fatalf("session error: %v", err)
	}

	var paths []string
	for _, r := range ts.requests {
		paths = append(paths, r.Method+" "+strings.SplitN(r.Path, "?", 2)[0])
	}
	want := []string{"GET /problem/root-id", "POST /stuck", "POST /complete"}
	if len(paths) != len(want) {
		t.Fatalf("requests = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d = %q, want %q", i, paths[i], want[i])
		}
	}

	// solve went against the pushed subproblem, not the root.
	var completeBody map[string]any
	if err := json.Unmarshal([]byte(ts.requests[2].Body), &completeBody); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if completeBody["subproblemId"] != "sub-id-12345" {
		t.Errorf("subproblemId = %v, want sub-id-12345", completeBody["subproblemId"])
	}
}

func TestWorkSession_SolveAtRootRefused(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /problem/root-id": `{"id":"root-id","text":"solve 2x+3=11","title":"Linear Equation","category":"Algebra","status":"active","isSubproblem":false}`,
	})

	input := filepath.Join(t.TempDir(), "input")
	if err := os.WriteFile(input, []byte("solve x = 4\nquit\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(input)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := runWorkSession(ctx, ts.client(), "root-id", f); err != nil {
		t.Fatalf("session error: %v", err)
	}

	// No /complete call should have been made from the root frame.
	for _, r := range ts.requests {
		if strings.HasPrefix(r.Path, "/complete") {
			t.Errorf("unexpected /complete call: %+v", r)
		}
	}
}
