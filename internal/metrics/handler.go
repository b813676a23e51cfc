package metrics

import (
	"context"
	"encoding/json"
	"net/http"
)

// SnapshotProvider abstracts Manager for testing.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (map[string]int64, map[string]HistogramSnapshot, error)
}

// histogramJSON mirrors the Prometheus text-exposition shape for a
// cumulative histogram: a count, a sum, and a bucket map keyed by the
// stringified upper bound ("le").
type histogramJSON struct {
	Count   int64            `json:"count"`
	Sum     int64            `json:"sum"`
	Buckets map[string]int64 `json:"buckets"`
}

// Handler returns an http.HandlerFunc that writes a JSON metrics snapshot.
// If token is non-empty, requests must include Authorization: Bearer <token>.
func Handler(provider SnapshotProvider, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			hdr := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(hdr) <= len(prefix) || hdr[:len(prefix)] != prefix || hdr[len(prefix):] != token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		counters, histograms, err := provider.Snapshot(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		outHistograms := make(map[string]histogramJSON, len(histograms))
		for name, hs := range histograms {
			buckets := make(map[string]int64, len(hs.Buckets))
			for le, c := range hs.Buckets {
				buckets[bucketLabel(le)] = c
			}
			outHistograms[name] = histogramJSON{Count: hs.Count, Sum: hs.Sum, Buckets: buckets}
		}
		resp := map[string]any{
			"counters":   counters,
			"histograms": outHistograms,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
