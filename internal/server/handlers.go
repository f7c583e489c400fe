package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/copyleftdev/xsession/internal/actiontypes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Runner executes one action request.
type Runner interface {
	Run(ctx context.Context, req actiontypes.Request) actiontypes.Outcome
}

type APIHandler struct {
	runner Runner
	logger *zap.Logger
	// posting spaces successful tweet and reply runs; nil when unlimited.
	// postMu holds the check, the run and the charge together.
	posting *rate.Limiter
	postMu  sync.Mutex
}

// NewAPIHandler builds the handler. A positive postInterval is the minimum
// spacing between posting actions.
func NewAPIHandler(runner Runner, postInterval time.Duration, logger *zap.Logger) *APIHandler {
	h := &APIHandler{runner: runner, logger: logger}
	if postInterval > 0 {
		h.posting = rate.NewLimiter(rate.Every(postInterval), 1)
	}
	return h
}

// HandleRunAction runs the requested action synchronously and returns its
// outcome. A completed run is a 200 whatever the outcome's success flag.
func (h *APIHandler) HandleRunAction(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req actiontypes.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: %v", err)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "No action specified")
		return
	}

	if h.posting != nil && isPosting(req.Name) {
		h.postMu.Lock()
		defer h.postMu.Unlock()
		if h.posting.Tokens() < 1 {
			h.logger.Info("Posting rate limited", zap.String("action", string(req.Name)))
			respondJSON(w, http.StatusTooManyRequests, actiontypes.Outcome{
				Success: false,
				Error:   fmt.Sprintf("%s rejected: posting too frequently", req.Name.Title()),
			})
			return
		}
		out := h.runner.Run(r.Context(), req)
		// Only a run that posted counts against the interval.
		if out.Success {
			h.posting.Allow()
		}
		respondJSON(w, http.StatusOK, out)
		return
	}

	out := h.runner.Run(r.Context(), req)
	respondJSON(w, http.StatusOK, out)
}

func isPosting(name actiontypes.ActionName) bool {
	return name == actiontypes.ActionTweet || name == actiontypes.ActionReply
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to marshal JSON response")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	jsonResponse, err := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
	if err != nil {
		jsonResponse = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(jsonResponse)
}
