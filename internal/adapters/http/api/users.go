package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	service "github.com/okian/vitalsync/internal/app"
)

const defaultHistoryRange = 7 * 24 * time.Hour

// UsersHandler serves the per-user routes.
type UsersHandler struct {
	deps Dependencies
	loc  *time.Location
	now  func() time.Time
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(deps Dependencies, loc *time.Location, now func() time.Time) *UsersHandler {
	return &UsersHandler{deps: deps, loc: loc, now: now}
}

type syncAccepted struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
}

// HandleSync handles POST /v1/users/{id}/sync. With wait=true the sync runs
// inline and the committed report is returned; otherwise a job is queued.
func (h *UsersHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	q := r.URL.Query()
	days, err := parsePositiveInt(q.Get("fallback_days"))
	if err != nil {
		writeError(w, err)
		return
	}
	if q.Get("wait") == "true" {
		rep, err := h.deps.SyncUser(r.Context(), userID, days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
		return
	}
	id, err := h.deps.EnqueueSync(r.Context(), userID, days, service.ReasonManual)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, syncAccepted{Status: "accepted", JobID: id})
}

// HandleAnomaly handles GET /v1/users/{id}/anomaly?date=YYYY-MM-DD. Without a
// date the current day in the configured zone is scored.
func (h *UsersHandler) HandleAnomaly(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().In(h.loc).Format(dateLayout)
	}
	v, err := h.deps.Anomaly(r.Context(), mux.Vars(r)["id"], date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleModelStatus handles GET /v1/users/{id}/model.
func (h *UsersHandler) HandleModelStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.ModelStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleTrain handles POST /v1/users/{id}/model/train.
func (h *UsersHandler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	meta, err := h.deps.Train(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// HandleReadings handles GET /v1/users/{id}/readings?metric=&from=&to=.
// The range defaults to the last seven days.
func (h *UsersHandler) HandleReadings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kinds, err := parseKinds(q.Get("metric"))
	if err != nil {
		writeError(w, err)
		return
	}
	to := h.now()
	if raw := q.Get("to"); raw != "" {
		if to, err = parseTime(raw, h.loc); err != nil {
			writeError(w, err)
			return
		}
	}
	from := to.Add(-defaultHistoryRange)
	if raw := q.Get("from"); raw != "" {
		if from, err = parseTime(raw, h.loc); err != nil {
			writeError(w, err)
			return
		}
	}
	hist, err := h.deps.History(r.Context(), mux.Vars(r)["id"], kinds, from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}
