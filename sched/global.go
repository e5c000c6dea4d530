package sched

import (
	"log/slog"
	"sync"
)

var (
	globalPool *Pool
	globalMu   sync.Mutex
)

// Default returns the process-wide pool, creating it with GOMAXPROCS slots on
// first use unless SetDefault ran first.
func Default() *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool == nil {
		globalPool = New(0)
	}
	return globalPool
}

// SetDefault installs p as the process-wide pool. It must be called before
// Default is first used (e.g. at startup); later calls log a warning and are
// ignored.
func SetDefault(p *Pool) {
	if p == nil {
		return
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalPool != nil {
		slog.Warn("sched: SetDefault called after default pool already initialized; ignoring")
		return
	}
	globalPool = p
}
