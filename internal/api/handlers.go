package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unstuck-app/unstuck/internal/llm"
	"github.com/unstuck-app/unstuck/internal/storage"
	"github.com/unstuck-app/unstuck/internal/tutor"
)

const maxRequestBodySize = 10 << 20 // 10MB, bounds pasted work and data URLs

// AppDeps holds dependencies for the HTTP handlers.
type AppDeps struct {
	Tutor *tutor.Service
}

// NewHandler builds the HTTP API over the tutor service.
func NewHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/ingest", handleIngest(deps))
	r.Get("/problem/{id}", handleGetProblem(deps))
	r.Post("/stuck", handleStuck(deps))
	r.Post("/check", handleCheck(deps))
	r.Post("/complete", handleComplete(deps))
	r.Get("/reveal", handleReveal(deps))
	r.Get("/recent-problems", handleRecentProblems(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	ImageURL string `json:"imageUrl"`
	Text     string `json:"text"`
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Tutor.Ingest(r.Context(), tutor.IngestRequest{
			ImageURL: req.ImageURL,
			Text:     req.Text,
		})
		if err != nil {
			writeServiceError(w, "ingest", err)
			return
		}

		resp := map[string]any{"problemId": res.ProblemID}
		if res.ProblemText != "" {
			resp["problemText"] = res.ProblemText
			resp["category"] = res.Category
			resp["title"] = res.Title
		}
		writeJSON(w, resp)
	}
}

func handleGetProblem(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		view, err := deps.Tutor.GetProblem(r.Context(), id)
		if err != nil {
			writeServiceError(w, "get problem", err)
			return
		}
		writeJSON(w, view)
	}
}

type workRequest struct {
	ProblemID      string   `json:"problemId"`
	SubproblemID   string   `json:"subproblemId"`
	UserWorkImages []string `json:"userWorkImages"`
	UserText       string   `json:"userText"`
}

func handleStuck(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req workRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Tutor.Stuck(r.Context(), tutor.StuckRequest{
			ProblemID:  req.ProblemID,
			WorkImages: req.UserWorkImages,
			WorkText:   req.UserText,
		})
		if err != nil {
			writeServiceError(w, "stuck", err)
			return
		}
		writeJSON(w, res)
	}
}

func handleCheck(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req workRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		feedback, err := deps.Tutor.CheckThinking(r.Context(), tutor.CheckRequest{
			ProblemID:  req.ProblemID,
			WorkImages: req.UserWorkImages,
			WorkText:   req.UserText,
		})
		if err != nil {
			writeServiceError(w, "check", err)
			return
		}
		writeJSON(w, map[string]string{"feedback": feedback})
	}
}

func handleComplete(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req workRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		verdict, err := deps.Tutor.Complete(r.Context(), tutor.CompleteRequest{
			SubproblemID: req.SubproblemID,
			WorkImages:   req.UserWorkImages,
			WorkText:     req.UserText,
		})
		if err != nil {
			writeServiceError(w, "complete", err)
			return
		}
		writeJSON(w, map[string]any{
			"solved":       verdict.Solved,
			"tutorMessage": verdict.TutorMessage,
		})
	}
}

func handleReveal(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		problemID := r.URL.Query().Get("problemId")

		hidden, err := deps.Tutor.Reveal(r.Context(), problemID)
		if err != nil {
			writeServiceError(w, "reveal", err)
			return
		}
		writeJSON(w, map[string]string{
			"solution": hidden.Solution,
			"answer":   hidden.Answer,
		})
	}
}

type recentProblem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	Status       string `json:"status"`
	LastActiveAt string `json:"lastActiveAt"`
	CreatedAt    string `json:"createdAt"`
}

func handleRecentProblems(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 5)

		problems, err := deps.Tutor.RecentProblems(r.Context(), limit)
		if err != nil {
			writeServiceError(w, "recent problems", err)
			return
		}

		out := make([]recentProblem, 0, len(problems))
		for _, p := range problems {
			title := p.Title
			if title == "" {
				title = "Problem"
			}
			category := p.Category
			if category == "" {
				category = "General"
			}
			out = append(out, recentProblem{
				ID:           p.ID,
				Title:        title,
				Category:     category,
				Status:       string(p.Status),
				LastActiveAt: p.LastActiveAt.UTC().Format(time.RFC3339),
				CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, map[string]any{"problems": out})
	}
}

// writeServiceError maps service errors onto the HTTP taxonomy: validation
// 400, unknown id 404, model-side failure and everything else 500. Internal
// detail goes to the log, not the client.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve *tutor.ValidationError
	if errors.As(err, &ve) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", ve.Error())
		return
	}
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "problem not found")
		return
	}
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		slog.Error("model call failed", "op", op, "error", err)
		httpError(w, http.StatusInternalServerError, "upstream_error", "%s failed, please retry", op)
		return
	}
	slog.Error("request failed", "op", op, "error", err)
	httpError(w, http.StatusInternalServerError, "api_error", "internal server error")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
