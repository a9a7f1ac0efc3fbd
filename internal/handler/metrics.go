package handler

import (
	"fmt"
	"net/http"

	"github.com/secondchance/secondchance/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "secondchance_users_registered_total %d\n", snap.UsersRegistered)
	writeMetric(w, "secondchance_logins_total{result=\"success\"} %d\n", snap.LoginsSucceeded)
	writeMetric(w, "secondchance_logins_total{result=\"failed\"} %d\n", snap.LoginsFailed)
	writeMetric(w, "secondchance_profiles_updated_total %d\n", snap.ProfilesUpdated)

	writeMetric(w, "secondchance_items_created_total %d\n", snap.ItemsCreated)
	writeMetric(w, "secondchance_items_updated_total %d\n", snap.ItemsUpdated)
	writeMetric(w, "secondchance_items_deleted_total %d\n", snap.ItemsDeleted)

	writeMetric(w, "secondchance_item_cache_hits_total %d\n", snap.ItemCacheHits)
	writeMetric(w, "secondchance_item_cache_misses_total %d\n", snap.ItemCacheMisses)
	writeMetric(w, "secondchance_item_lookup_duration_seconds_count %d\n", snap.ItemLookupCount)
	writeMetric(w, "secondchance_item_lookup_duration_seconds_sum %.6f\n", snap.ItemLookupDurationTotal.Seconds())
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
