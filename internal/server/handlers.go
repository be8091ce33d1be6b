package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lightcmd/internal/command"
	"github.com/dokzlo13/lightcmd/internal/eventbus"
	"github.com/dokzlo13/lightcmd/internal/interpreter"
	"github.com/dokzlo13/lightcmd/internal/ledger"
)

const (
	maxBodyBytes        = 64 << 10
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// handleCommand runs the command carried by the request.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	args, err := requestArgs(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Unreadable request arguments")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if err := s.authorize(args); err != nil || !args.Has("command") {
		logger.Info().Str("path", r.URL.Path).Msg("Rejected request without valid key or command")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err = s.exec.Execute(r.Context(), interpreter.Request{
		ID:      RequestID(r.Context()),
		Source:  "http",
		Command: args.Get("command"),
	})
	status, msg := statusFor(err)
	if status == http.StatusOK {
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Error(w, msg, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	hub := "pending"
	if s.ready != nil && s.ready.Ready() {
		hub = "connected"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "hub": hub})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	args := r.URL.Query()
	if err := s.authorize(args); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if s.history == nil {
		http.Error(w, "History disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := args.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var entries []*ledger.Entry
	var err error
	if raw := args.Get("type"); raw != "" {
		eventType := eventbus.EventType(raw)
		if !slices.Contains(eventbus.AllEventTypes, eventType) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		entries, err = s.history.GetByType(eventType, limit)
	} else {
		entries, err = s.history.GetRecent(limit)
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to read history")
		http.Error(w, "History unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// authorize checks the shared key in constant time. A missing key and a
// wrong key are indistinguishable to the caller.
func (s *Server) authorize(args url.Values) error {
	key := args.Get("key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.opts.Key)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// requestArgs returns the query parameters, or the form body in their place
// when the request carries one.
func requestArgs(r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/x-www-form-urlencoded" {
		return r.URL.Query(), nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return url.ParseQuery(string(body))
}

// statusFor maps an execution result onto an HTTP status and message.
func statusFor(err error) (int, string) {
	var syntaxErr *command.SyntaxError
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &syntaxErr):
		return http.StatusBadRequest, syntaxErr.Error()
	case errors.Is(err, command.ErrMalformedCommand):
		return http.StatusBadRequest, "Bad request"
	default:
		return http.StatusInternalServerError, "Trigger command failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
