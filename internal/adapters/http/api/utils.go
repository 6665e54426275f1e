package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/vitalsync/internal/domain/model"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseKinds reads a comma-separated metric list. Empty means all kinds.
func parseKinds(raw string) ([]model.MetricKind, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []model.MetricKind
	for _, name := range strings.Split(raw, ",") {
		k, ok := model.ParseMetricKind(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
		}
		out = append(out, k)
	}
	return out, nil
}

// parseTime accepts RFC3339 or a bare YYYY-MM-DD date in loc.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q", ErrBadRequest, raw)
	}
	return t, nil
}

func parsePositiveInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrBadRequest, raw)
	}
	return n, nil
}
