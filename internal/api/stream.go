package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const streamKeepAlive = 25 * time.Second

// handleStreamItems sends the list overview as server-sent events: one
// "overview" event right away and another after every change.
func (s *Server) handleStreamItems(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sess := sessionFrom(r)
	snapshots, err := s.svc.Subscribe(r.Context(), sess)
	if err != nil {
		s.respondServiceError(w, r, "subscribe", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(s.overviewOf(snap.Items))
			if err != nil {
				s.logger.WithError(err).Error("failed to encode snapshot")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: overview\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
