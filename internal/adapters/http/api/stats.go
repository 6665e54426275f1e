package api

import (
	"context"
	"net/http"

	"github.com/okian/vitalsync/internal/adapters/repository"
)

// StatsProvider exposes service statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (repository.Stats, error)
	QueueLen(ctx context.Context) int
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

type statsResponse struct {
	repository.Stats
	QueueLen int `json:"queue_len"`
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.statsProvider.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: st, QueueLen: h.statsProvider.QueueLen(r.Context())})
}
