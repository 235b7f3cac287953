package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/redeclipse/stats-api/internal/logic"
)

// pageQuery selects one page of a listing
type pageQuery struct {
	Page int `validate:"min=0"`
}

// windowQuery selects a lookback window in days and a result count
type windowQuery struct {
	Days  int `validate:"min=0,max=36500"`
	Limit int `validate:"min=0,max=1000"`
}

// badRequest marks errors caused by the request itself
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func intParam(r *http.Request, name string, fallback int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &badRequest{fmt.Sprintf("%s must be an integer", name)}
	}
	return n, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &badRequest{fmt.Sprintf("%s must be a boolean", name)}
	}
	return b, nil
}

// validate runs the struct rules and turns failures into a readable message
func (h *Handler) validate(q any) error {
	err := h.validator.Struct(q)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return &badRequest{strings.Join(msgs, "; ")}
}

func (h *Handler) parsePage(r *http.Request) (pageQuery, error) {
	page, err := intParam(r, "page", 0)
	if err != nil {
		return pageQuery{}, err
	}
	q := pageQuery{Page: page}
	return q, h.validate(q)
}

func (h *Handler) parseWindow(r *http.Request, defaultLimit int) (windowQuery, error) {
	days, err := intParam(r, "days", 0)
	if err != nil {
		return windowQuery{}, err
	}
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		return windowQuery{}, err
	}
	q := windowQuery{Days: days, Limit: limit}
	return q, h.validate(q)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warnw("Failed to encode response", "error", err)
	}
}

func (h *Handler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps an error onto a status code. Only unexpected errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var bad *badRequest
	switch {
	case errors.As(err, &bad):
		h.errorResponse(w, http.StatusBadRequest, bad.msg)
	case errors.Is(err, logic.ErrNotFound):
		h.errorResponse(w, http.StatusNotFound, "Not found")
	default:
		h.logger.Errorw("Request failed",
			"error", err,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
		)
		h.errorResponse(w, http.StatusInternalServerError, "Internal server error")
	}
}

// respond writes v, or the error if there is one
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.jsonResponse(w, http.StatusOK, v)
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
