package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/MrWong99/boxkeeper/internal/command"
	"github.com/MrWong99/boxkeeper/internal/inventory"
	"github.com/MrWong99/boxkeeper/internal/observe"
	"github.com/MrWong99/boxkeeper/pkg/store"
)

// ─── Wire types ──────────────────────────────────────────────────────────────

type utteranceRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
}

type utteranceResponse struct {
	SessionID string `json:"session_id"`

	// Message is the full spoken reply.
	Message string `json:"message"`

	command.Reply
}

type createBoxRequest struct {
	Name string `json:"name"`
}

type createBoxResponse struct {
	Box     store.Box `json:"box"`
	Created bool      `json:"created"`
}

type contentsResponse struct {
	Box   store.Box    `json:"box"`
	Items []store.Item `json:"items"`
}

type suggestion struct {
	Name  string  `json:"name"`
	Box   string  `json:"box"`
	Score float64 `json:"score"`
}

type errorBody struct {
	Error       string         `json:"error"`
	Code        inventory.Code `json:"code,omitempty"`
	Suggestions []suggestion   `json:"suggestions,omitempty"`
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) postUtterance(w http.ResponseWriter, r *http.Request) {
	var req utteranceRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "text is required"})
		return
	}
	id, sess := s.sessions.get(req.SessionID)
	reply := sess.Handle(r.Context(), req.Text)
	writeJSON(w, http.StatusOK, utteranceResponse{SessionID: id, Message: reply.Text(), Reply: reply})
}

func (s *Server) listBoxes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"boxes": s.inv.ListBoxes()})
}

func (s *Server) createBox(w http.ResponseWriter, r *http.Request) {
	var req createBoxRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	box, created, err := s.inv.AddBox(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, createBoxResponse{Box: box, Created: created})
}

func (s *Server) deleteBox(w http.ResponseWriter, r *http.Request) {
	box, err := s.inv.RemoveBox(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"box": box})
}

func (s *Server) boxItems(w http.ResponseWriter, r *http.Request) {
	box, items, err := s.inv.Contents(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []store.Item{}
	}
	writeJSON(w, http.StatusOK, contentsResponse{Box: box, Items: items})
}

func (s *Server) clearBox(w http.ResponseWriter, r *http.Request) {
	res, err := s.inv.ClearBox(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) items(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, map[string]any{"items": s.inv.ListItems()})
		return
	}
	found, err := s.inv.FindItem(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": found})
}

func (s *Server) reindex(w http.ResponseWriter, r *http.Request) {
	n, err := s.inv.Reindex(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": n})
}

func (s *Server) sync(w http.ResponseWriter, r *http.Request) {
	if err := s.inv.Sync(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps an inventory failure to an HTTP status.
func statusFor(code inventory.Code) int {
	switch code {
	case inventory.CodeNotFound:
		return http.StatusNotFound
	case inventory.CodeConflict:
		return http.StatusConflict
	case inventory.CodeInvalid:
		return http.StatusBadRequest
	case inventory.CodeTransport:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ie *inventory.Error
	if !errors.As(err, &ie) {
		observe.Logger(r.Context()).Error("api: request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: command.Describe(err)})
		return
	}
	body := errorBody{Error: command.Describe(err), Code: ie.Code}
	for _, m := range ie.Suggestions {
		body.Suggestions = append(body.Suggestions, suggestion{Name: m.DisplayName, Box: m.BoxName, Score: m.Score})
	}
	writeJSON(w, statusFor(ie.Code), body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
