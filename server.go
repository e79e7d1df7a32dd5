package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aramirez92/gprs-sim900/sim900"
)

// Server exposes the orchestrator over HTTP
type Server struct {
	Logger *slog.Logger
	Modem  *sim900.Orchestrator
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /sms", s.handleSendSMS)
	mux.HandleFunc("GET /sms/{index}", s.handleReadSMS)
	mux.HandleFunc("POST /calls", s.handleDial)
	mux.HandleFunc("DELETE /calls", s.handleHangUp)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleSendSMS processes POST /sms requests
func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	type SMSRequest struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}

	var req SMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.To == "" || req.Message == "" {
		s.sendError(w, "both 'to' and 'message' fields are required", http.StatusBadRequest)
		return
	}

	ref, err := s.Modem.SendSMS(r.Context(), req.To, req.Message)
	if err != nil {
		s.Logger.Error("Failed to send SMS", "error", err, "to", req.To)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.Logger.Info("SMS sent", "to", req.To, "ref", ref)
	s.sendJSON(w, map[string]int{"ref": ref})
}

// handleReadSMS processes GET /sms/{index} requests; ?keep=1 leaves the
// message's unread status untouched
func (s *Server) handleReadSMS(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.sendError(w, "index must be numeric", http.StatusBadRequest)
		return
	}
	keep := r.URL.Query().Get("keep") == "1"

	frames, err := s.Modem.ReadSMS(r.Context(), index, keep)
	if err != nil {
		s.Logger.Error("Failed to read SMS", "error", err, "index", index)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.sendJSON(w, map[string][]string{"frames": frames})
}

// handleDial processes POST /calls requests
func (s *Server) handleDial(w http.ResponseWriter, r *http.Request) {
	type CallRequest struct {
		Number string `json:"number"`
	}

	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.Modem.Dial(r.Context(), req.Number); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, sim900.ErrNumberTooShort) || errors.Is(err, sim900.ErrInCall) {
			status = http.StatusBadRequest
		}
		s.Logger.Error("Failed to dial", "error", err)
		s.sendError(w, err.Error(), status)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleHangUp processes DELETE /calls requests
func (s *Server) handleHangUp(w http.ResponseWriter, r *http.Request) {
	if err := s.Modem.HangUp(r.Context()); err != nil {
		s.Logger.Error("Failed to hang up", "error", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
