package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/engine"
	"github.com/Veraticus/narration-resolver/internal/model"
)

type predictRequest struct {
	Description *string `json:"description"`
}

type feedbackRequest struct {
	Description     *string `json:"description"`
	CorrectCategory *string `json:"correct_category"`
	UserID          string  `json:"user_id,omitempty"`
	TransactionID   string  `json:"transaction_id,omitempty"`
}

type feedbackResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	Description     string `json:"description"`
	CorrectCategory string `json:"correct_category"`
}

type healthResponse struct {
	Status          string `json:"status"`
	Classifier      string `json:"classifier"`
	Corrections     int    `json:"corrections"`
	Keywords        int    `json:"keywords"`
	ClassifierReady bool   `json:"classifier_ready"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Narration resolution API",
		"endpoints": []string{"GET /health", "POST /predict", "POST /predict/batch", "POST /feedback"},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "healthy", Classifier: "none"}
	if s.deps.Classifier != nil {
		resp.ClassifierReady = s.deps.Classifier.Ready()
		resp.Classifier = s.deps.Classifier.Name()
	}
	if s.deps.Index != nil {
		resp.Corrections = s.deps.Index.Len()
	}
	if s.deps.Keywords != nil {
		resp.Keywords = s.deps.Keywords.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Description == nil {
		writeError(w, http.StatusBadRequest, "Missing 'description' field")
		return
	}

	result := s.deps.Resolver.Resolve(r.Context(), *req.Description)
	writeJSON(w, http.StatusOK, engine.NewResult(result))
}

func (s *Server) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	narrations, err := engine.ParseBatchEnvelope(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results := s.deps.Resolver.ResolveBatch(r.Context(), narrations, s.batchOpts)
	writeJSON(w, http.StatusOK, engine.NewResults(results))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Corrections == nil {
		writeError(w, http.StatusServiceUnavailable, "corrections are not writable")
		return
	}

	var req feedbackRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Description == nil || req.CorrectCategory == nil {
		writeError(w, http.StatusBadRequest, "Missing 'description' or 'correct_category' field")
		return
	}

	err := s.deps.Corrections.Upsert(r.Context(), *req.Description, *req.CorrectCategory, model.CorrectionMeta{
		UserID:        req.UserID,
		TransactionID: req.TransactionID,
	})
	switch {
	case err == nil:
	case errors.Is(err, common.ErrInvalidCorrection):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		slog.Error("Failed to record feedback", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{
		Status:          "success",
		Message:         "Feedback recorded; it applies after the next reload",
		Description:     strings.TrimSpace(*req.Description),
		CorrectCategory: strings.TrimSpace(*req.CorrectCategory),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err := dec.Decode(dst); err != nil {
		return errors.New("request body must be a JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
