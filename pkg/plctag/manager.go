// Package plctag is the public, application-facing API: typed tag
// handles created from a libplctag-style attribute string, backed by
// this module's session registry, tag coordinators, and cooperative I/O
// worker. It mirrors the architecture of original_source's libplctag.h
// (a process-wide tag manager driven by one background I/O thread,
// tags created and destroyed independently against it) without
// mirroring its C-ABI surface: handles are *Tag values, not opaque
// int32 ids, and errors are Go errors, not plc_tag_status() polling.
package plctag

import (
	"sync"
	"time"

	"github.com/tturner/ab-eip-client/internal/plc/ioworker"
	"github.com/tturner/ab-eip-client/internal/plc/logging"
	"github.com/tturner/ab-eip-client/internal/plc/registry"
)

var (
	managerOnce sync.Once
	managerReg  *registry.Registry
	managerWrk  *ioworker.Worker
	managerStop chan struct{}
	managerLog  *logging.Logger
)

// manager lazily starts the process-wide registry, worker, and
// background pump on first use, the same way original_source's library
// starts its single I/O thread on the first plc_tag_create call rather
// than at process init.
func manager() (*registry.Registry, *ioworker.Worker) {
	managerOnce.Do(func() {
		managerReg = registry.New()
		managerWrk = ioworker.New()
		managerStop = make(chan struct{})
		managerLog, _ = logging.New(logging.LevelSilent, "")
		go pumpLoop(managerWrk, managerStop)
	})
	return managerReg, managerWrk
}

// SetLogger redirects every Tag's session/operation logging to log. Call
// any time; it takes effect on the worker's next tick.
func SetLogger(log *logging.Logger) {
	_, wrk := manager()
	wrk.SetLogger(log)
	managerLog = log
}

// logger returns the process-wide logger Create's own diagnostics (e.g.
// the Omron elem_count clamp) write through, independent of the
// worker's copy so it is available before manager() has necessarily run.
func logger() *logging.Logger {
	manager()
	return managerLog
}

// SessionInfo is a diagnostic snapshot of one open Session, for a CLI or
// TUI monitor to list without reaching into internal/plc/session
// itself.
type SessionInfo struct {
	Protocol  string
	Host      string
	Port      uint16
	State     string
	Connected bool
	RefCount  int
}

// Sessions returns a point-in-time snapshot of every session the
// process-wide registry currently tracks (spec.md S7: "diagnostic
// listing of active sessions").
func Sessions() []SessionInfo {
	reg, _ := manager()
	snap := reg.Snapshot()
	out := make([]SessionInfo, 0, len(snap))
	for _, sess := range snap {
		out = append(out, SessionInfo{
			Protocol:  sess.Identity.Protocol,
			Host:      sess.Identity.Host,
			Port:      sess.Identity.Port,
			State:     sess.State().String(),
			Connected: sess.IsConnected(),
			RefCount:  sess.RefCount(),
		})
	}
	return out
}

// pumpLoop is this package's stand-in for original_source's background
// I/O thread: it ticks the shared worker on a steady cadence for as
// long as the process has any tag open, so Read/Write's blocking wait
// below always has forward progress to wait on.
func pumpLoop(w *ioworker.Worker, stop chan struct{}) {
	ticker := time.NewTicker(ioworker.IdleSleep)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			_ = w.Tick(now)
		}
	}
}
