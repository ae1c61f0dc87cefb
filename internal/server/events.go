package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// handleEvents streams plan changes as server-sent events. Each event
// is one committed mutation; the SSE id field carries the plan version
// so clients can notice gaps. A gap event means the client fell behind
// and must refetch the plan before trusting further events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	planID := r.PathValue("id")
	if _, err := s.engine.GetPlan(r.Context(), planID); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.engine.Broker().Subscribe(planID)
	defer s.engine.Broker().Unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub.C:
			if !open {
				return
			}
			name := "change"
			if ev.Gap {
				name = "gap"
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\n", strconv.FormatInt(ev.Version, 10))
			fmt.Fprintf(w, "event: %s\n", name)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
