package server

import (
	"sync/atomic"

	"github.com/vango-dev/tracestream/pkg/protocol"
)

// pendingPush is the handoff between the notification goroutine and the
// poll loop. The three cells are independent atomics; a reason from a later
// notification may pair with flags from an earlier one.
type pendingPush struct {
	info   atomic.Bool
	sync   atomic.Bool
	reason atomic.Uint32
}

// request records a push. Later requests overwrite earlier unconsumed ones.
func (p *pendingPush) request(sendSync bool, reason protocol.SyncReason) {
	p.reason.Store(uint32(reason))
	p.sync.Store(sendSync)
	p.info.Store(true)
}

// take consumes the pending push. ok is false when nothing was requested,
// in which case the sync flag and reason are left untouched.
func (p *pendingPush) take() (sendSync bool, reason protocol.SyncReason, ok bool) {
	if !p.info.Swap(false) {
		return false, 0, false
	}
	sendSync = p.sync.Swap(false)
	reason = protocol.SyncReason(p.reason.Load())
	return sendSync, reason, true
}

// pending reports whether a push is waiting.
func (p *pendingPush) pending() bool {
	return p.info.Load()
}
