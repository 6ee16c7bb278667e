package comm

import "sync"

// InProcLink is the in-process Communicator implementation: a
// mutex-protected FIFO queue with a condition variable, grounded on the
// teacher's sync.WaitGroup/channel fan-out style in engine.go, generalized
// to the coalescing per-type queue spec.md 4.H requires.
//
// stopAckWaitSelf/stopAckWaitChildren are exposed so a parent worker can
// track how many STOP_ACKs it still owes upward once it has both stopped
// its own search and heard back from every child it forwarded STOP_SEARCH
// to (spec.md 4.H/4.I).
type InProcLink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Command
	closed bool

	stopSeq uint64 // stop-cycle counter advanced by NextStopSeq. A
	// STOP_ACK carries no sequence number and the ack bookkeeping below
	// does not consult stopSeq, so acks are not matched to a stop cycle.

	stopAckWaitSelf     bool
	stopAckWaitChildren int
}

// NewInProcLink creates an empty, open link.
func NewInProcLink() *InProcLink {
	l := &InProcLink{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Send implements Communicator.Send with per-type coalescing.
func (l *InProcLink) Send(cmd Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if startsOrStops(cmd.Type) {
		l.sweepStartStop()
		l.queue = append(l.queue, cmd)
		l.cond.Signal()
		return
	}
	if cmd.Type == ReportStats {
		for i := range l.queue {
			if l.queue[i].Type == ReportStats {
				l.queue[i] = foldReportStats(l.queue[i], cmd)
				l.cond.Signal()
				return
			}
		}
		l.queue = append(l.queue, cmd)
		l.cond.Signal()
		return
	}
	if coalesces(cmd.Type) {
		for i := range l.queue {
			if l.queue[i].Type == cmd.Type {
				l.queue[i] = cmd
				l.cond.Signal()
				return
			}
		}
	}
	l.queue = append(l.queue, cmd)
	l.cond.Signal()
}

// sweepStartStop removes any pending StartSearch, StopSearch or
// ReportResult from the queue. Called before appending a new
// StartSearch or StopSearch, per spec.md 4.H: "Before enqueuing
// START_SEARCH or STOP_SEARCH, coalesce by removing any pending
// START_SEARCH/STOP_SEARCH/REPORT_RESULT already in the queue."
// Caller holds l.mu.
func (l *InProcLink) sweepStartStop() {
	kept := l.queue[:0]
	for _, c := range l.queue {
		if c.Type == StartSearch || c.Type == StopSearch || c.Type == ReportResult {
			continue
		}
		kept = append(kept, c)
	}
	l.queue = kept
}

// Recv implements Communicator.Recv.
func (l *InProcLink) Recv() (Command, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.queue) == 0 && !l.closed {
		l.cond.Wait()
	}
	if len(l.queue) == 0 && l.closed {
		return Command{}, false
	}
	cmd := l.queue[0]
	l.queue = l.queue[1:]
	return cmd, true
}

// Close implements Communicator.Close.
func (l *InProcLink) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.cond.Broadcast()
}

// NextStopSeq advances and returns the stop-cycle tag to attach to a new
// STOP_SEARCH broadcast.
func (l *InProcLink) NextStopSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopSeq++
	return l.stopSeq
}

// BeginStopWait records that ownSearch acks and childCount children's
// STOP_ACKs are now outstanding, overwriting any counts left from an
// earlier stop.
func (l *InProcLink) BeginStopWait(childCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopAckWaitSelf = true
	l.stopAckWaitChildren = childCount
}

// AckSelf records that this worker's own search has stopped.
func (l *InProcLink) AckSelf() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopAckWaitSelf = false
}

// AckChild records one child's STOP_ACK and reports whether every
// outstanding ack (self + all children) has now arrived.
func (l *InProcLink) AckChild() (done bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopAckWaitChildren > 0 {
		l.stopAckWaitChildren--
	}
	return !l.stopAckWaitSelf && l.stopAckWaitChildren == 0
}
