package scheduler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/chipsneutrino/daqonite/internal/daqlog"
)

// TriggerServer exposes the HTTP endpoint the external spill trigger
// source posts to, replacing the original's XML/RPC transport with a
// plain JSON-over-HTTP call on the same logical port. Wired with
// gorilla/mux the way the rest of this codebase's HTTP surfaces are.
type TriggerServer struct {
	external *External
	srv      *http.Server
}

type triggerRequest struct {
	// NovaTicks is the trigger time as ticks since the NOvA epoch at
	// 64 MHz, matching the wire format External.OnTrigger converts
	// via pkg/tai.TriggerEpoch.
	NovaTicks uint64 `json:"novaTicks"`
}

// NewTriggerServer builds (but does not start) an HTTP server that
// feeds incoming triggers into external.
func NewTriggerServer(addr string, external *External) *TriggerServer {
	r := mux.NewRouter()
	ts := &TriggerServer{external: external}
	r.HandleFunc("/trigger", ts.handleTrigger).Methods(http.MethodPost)
	ts.srv = &http.Server{
		Addr:         addr,
		Handler:      handlers.LoggingHandler(daqlog.InfoWriter, r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return ts
}

func (ts *TriggerServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ts.external.OnTrigger(req.NovaTicks)
	w.WriteHeader(http.StatusAccepted)
}

// ListenAndServe starts serving in a new goroutine and returns
// immediately. Use Shutdown to stop it.
func (ts *TriggerServer) ListenAndServe() error {
	ln, err := net.Listen("tcp", ts.srv.Addr)
	if err != nil {
		return err
	}
	go func() {
		if err := ts.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			daqlog.Errorf("trigger server: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the trigger server.
func (ts *TriggerServer) Shutdown(ctx context.Context) error {
	return ts.srv.Shutdown(ctx)
}
