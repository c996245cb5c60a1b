package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/yar-resh/camshoter/internal/logic/capture"
	"github.com/yar-resh/camshoter/internal/logic/trigger"
)

// Capturer starts a capture batch without waiting for it. *trigger.Handler
// satisfies it.
type Capturer interface {
	Start(now time.Time, done func(*capture.Result, error)) trigger.Outcome
	Busy() bool
}

// Status is the body of GET /status.
type Status struct {
	Busy bool            `json:"busy"`
	Last *capture.Result `json:"last,omitempty"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Capture     Capturer
	Config      any // effective configuration, served as JSON

	lastMu sync.RWMutex
	last   *capture.Result
}

// NewHandlers creates handlers with the given dependencies.
// If capturer is nil, POST /capture will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, capturer Capturer, cfg any) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Capture:     capturer,
		Config:      cfg,
	}
}

// RecordResult remembers res as the last batch and broadcasts it. It is
// used as the batch result hook, so button-triggered batches show up too.
func (h *Handlers) RecordResult(res *capture.Result) {
	h.lastMu.Lock()
	h.last = res
	h.lastMu.Unlock()
	h.Broadcaster.BroadcastResult(res)
}

// HandleConfig returns the effective configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Config)
}

// HandleStatus returns whether a batch is running and the last result.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.lastMu.RLock()
	st := Status{Last: h.last}
	h.lastMu.RUnlock()
	if h.Capture != nil {
		st.Busy = h.Capture.Busy()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st)
}

// HandleCapture handles POST /capture to start a batch.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.Capture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	outcome := h.Capture.Start(time.Now(), func(res *capture.Result, err error) {
		if err != nil {
			h.Broadcaster.Broadcast("error", "Capture failed: "+err.Error())
			log.Printf("capture failed: %v", err)
		}
	})

	switch outcome {
	case trigger.Busy:
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	case trigger.Debounced:
		http.Error(w, "capture requested too soon after the previous one", http.StatusTooManyRequests)
		return
	}

	h.Broadcaster.BroadcastMsg("Capture requested over HTTP")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "started"})
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
