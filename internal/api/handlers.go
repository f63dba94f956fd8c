// Package api exposes the activity list over HTTP.
package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/activitylog/internal/auth"
	"example.com/activitylog/internal/domain"
	"example.com/activitylog/internal/prompt"
)

// Handler coordinates HTTP requests with the activity controller.
type Handler struct {
	controller *domain.Controller
	validate   *validator.Validate
}

// NewHandler builds a Handler.
func NewHandler(controller *domain.Controller) *Handler {
	return &Handler{
		controller: controller,
		validate:   validator.New(),
	}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/activities", h.listActivities).Methods(http.MethodGet)
	v1.HandleFunc("/activities", h.createActivity).Methods(http.MethodPost)
	v1.HandleFunc("/activities/{id}", h.getActivity).Methods(http.MethodGet)
	v1.HandleFunc("/activities/{id}", h.updateActivity).Methods(http.MethodPut)
	v1.HandleFunc("/activities/{id}", h.deleteActivity).Methods(http.MethodDelete)
	v1.HandleFunc("/forms/add", h.addForm).Methods(http.MethodGet)
	v1.HandleFunc("/activities/{id}/forms/edit", h.editForm).Methods(http.MethodGet)
	v1.HandleFunc("/activities/{id}/forms/delete", h.deleteForm).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz reports whether the initial load has completed.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	state := h.controller.State()
	status := http.StatusOK
	if state != domain.StateReady {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"state": string(state)})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}

	items, err := h.controller.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := ListActivitiesResponse{Items: make([]ActivityView, 0, len(items))}
	for _, a := range items {
		resp.Items = append(resp.Items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeActivitiesRead) {
		return
	}

	activity, err := h.controller.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(activity))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeActivitiesWrite) {
		return
	}

	req, ok := h.decodeActivityRequest(w, r)
	if !ok {
		return
	}

	activity, err := h.controller.Add(r.Context(), req.input())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/activities/"+activity.ID)
	writeJSON(w, http.StatusCreated, toActivityView(activity))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeActivitiesWrite) {
		return
	}

	req, ok := h.decodeActivityRequest(w, r)
	if !ok {
		return
	}

	activity, err := h.controller.Edit(r.Context(), mux.Vars(r)["id"], req.input())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeActivitiesWrite) {
		return
	}

	removed, err := h.controller.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteActivityResponse{Removed: removed})
}

func (h *Handler) addForm(w http.ResponseWriter, r *http.Request) {
	if !requireScope(w, r, auth.ScopeActivitiesWrite) {
		return
	}
	writeJSON(w, http.StatusOK, prompt.AddForm())
}

func (h *Handler) editForm(w http.ResponseWriter, r *http.Request) {
	h.formFor(w, r, prompt.EditForm)
}

func (h *Handler) deleteForm(w http.ResponseWriter, r *http.Request) {
	h.formFor(w, r, prompt.DeleteForm)
}

func (h *Handler) formFor(w http.ResponseWriter, r *http.Request, build func(domain.Activity) prompt.Form) {
	if !requireScope(w, r, auth.ScopeActivitiesWrite) {
		return
	}

	activity, err := h.controller.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, build(activity))
}

func (h *Handler) decodeActivityRequest(w http.ResponseWriter, r *http.Request) (ActivityRequest, bool) {
	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return ActivityRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", describeValidation(err))
		return ActivityRequest{}, false
	}
	return req, true
}

// ActivityRequest carries raw form values for create and update. The type may
// be empty and the duration may be zero or negative. Number and date parsing
// happens in the domain so every surface accepts the same values.
type ActivityRequest struct {
	Type     string `json:"type"`
	Duration string `json:"duration" validate:"required"`
	Date     string `json:"date" validate:"required"`
}

func (r ActivityRequest) input() domain.ActivityInput {
	return domain.ActivityInput{Type: r.Type, Duration: r.Duration, Date: r.Date}
}

// ActivityView is the JSON representation of an activity.
type ActivityView struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	DurationMin float64 `json:"duration_min"`
	Date        string  `json:"date"`
}

// ListActivitiesResponse packages list results in insertion order.
type ListActivitiesResponse struct {
	Items []ActivityView `json:"items"`
}

// DeleteActivityResponse reports how many entries were removed.
type DeleteActivityResponse struct {
	Removed int `json:"removed"`
}

func toActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:          a.ID,
		Type:        a.Type,
		DurationMin: a.DurationMin,
		Date:        domain.FormatDateForInput(a.Date),
	}
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	// write implies read
	if claims.HasScope(scope) || (scope == auth.ScopeActivitiesRead && claims.HasScope(auth.ScopeActivitiesWrite)) {
		return true
	}
	writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("scope %s required", scope))
	return false
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
	default:
		log.Error().Err(err).Msg("api: request failed")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("api: encode response")
	}
}
