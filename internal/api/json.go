package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"fleetcmd/internal/dispatch"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeDispatchErr maps dispatch errors onto problem responses.
// Absent entities are 404; rule and lifecycle violations are 400.
func writeDispatchErr(w http.ResponseWriter, r *http.Request, err error) {
	var nf *dispatch.NotFoundError
	if errors.As(err, &nf) {
		writeProblem(w, http.StatusNotFound, "Not Found", nf.Error(), r.URL.Path)
		return
	}
	var el *dispatch.EligibilityError
	if errors.As(err, &el) {
		writeProblem(w, http.StatusBadRequest, "Dispatch Rejected", el.Error(), r.URL.Path)
		return
	}
	var it *dispatch.InvalidTransitionError
	if errors.As(err, &it) {
		writeProblem(w, http.StatusBadRequest, "Invalid Transition", it.Error(), r.URL.Path)
		return
	}
	var is *dispatch.InvalidStateError
	if errors.As(err, &is) {
		writeProblem(w, http.StatusBadRequest, "Invalid State", is.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Internal Error", err.Error(), r.URL.Path)
}
