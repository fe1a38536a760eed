package chi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marcelsud/storesync/syncqueue"
)

type batchRequest struct {
	Events []syncqueue.Event `json:"events"`
}

type syncResultsResponse struct {
	Results []syncqueue.SyncResult `json:"results"`
	Total   int                    `json:"total"`
	Failed  int                    `json:"failed"`
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

func newSyncResultsResponse(results []syncqueue.SyncResult) syncResultsResponse {
	resp := syncResultsResponse{Results: results, Total: len(results)}
	if resp.Results == nil {
		resp.Results = []syncqueue.SyncResult{}
	}
	for _, r := range results {
		if !r.Success {
			resp.Failed++
		}
	}
	return resp
}

// getSyncStatus handles GET /v1/sync/status
func getSyncStatus(q SyncQueue) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counts, err := q.Status(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, counts)
	})
}

// postSyncRetry handles POST /v1/sync/retry
func postSyncRetry(q SyncQueue) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results, err := q.RetryFailed(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, newSyncResultsResponse(results))
	})
}

// postSyncCleanup handles POST /v1/sync/cleanup; ?older_than=2h overrides the retention
func postSyncCleanup(q SyncQueue, olderThan time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := olderThan
		if v := r.URL.Query().Get("older_than"); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "older_than must be a non-negative duration")
				return
			}
			d = parsed
		}

		removed, err := q.Cleanup(r.Context(), d)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed})
	})
}

// postSyncBatch handles POST /v1/sync/batch
func postSyncBatch(q SyncQueue) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req batchRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid batch payload")
			return
		}
		if len(req.Events) == 0 {
			writeError(w, http.StatusBadRequest, "events cannot be empty")
			return
		}

		writeJSON(w, http.StatusOK, newSyncResultsResponse(q.HandleBatch(r.Context(), req.Events)))
	})
}
