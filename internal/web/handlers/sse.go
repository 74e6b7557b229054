package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// sseHeartbeat is how often an idle stream gets a comment line, so proxies
// do not drop it.
const sseHeartbeat = 15 * time.Second

func writeEvent(w io.Writer, flusher http.Flusher, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// streamJob sends the job's current state, then relays its events until the
// job ends or the client goes away.
func streamJob(w http.ResponseWriter, r *http.Request, job *ProcessJob) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	// subscribe first so nothing between the snapshot and the loop is lost
	events := job.Subscribe()
	defer job.Unsubscribe(events)

	if err := writeEvent(w, flusher, "status", job.Snapshot()); err != nil || isJobTerminal(job.GetStatus()) {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, flusher, ev.Type, ev); err != nil || isJobTerminal(job.GetStatus()) {
				return
			}
		}
	}
}
