// Package comm implements the worker-coordination protocol of spec.md
// 4.H: a small fixed set of command types exchanged over per-link FIFO
// queues, with coalescing rules that keep a busy worker's queue bounded
// regardless of how fast its parent issues commands.
package comm

import "github.com/texelcore/texel/internal/board"

// CommandType enumerates the messages a Communicator link carries.
type CommandType int

const (
	InitSearch CommandType = iota
	StartSearch
	StopSearch
	SetParam
	Quit
	ReportResult
	ReportStats
	StopAck
	QuitAck
	AssignThreads
)

// Command is one message on a link. Not every field is meaningful for
// every Type; see the per-type doc comments below.
type Command struct {
	Type CommandType
	JobID uint64

	// StartSearch / InitSearch
	Position      *board.Position
	Depth         int
	Moves         []board.Move // excluded root moves, multi-PV
	DeadlineNanos int64

	// SetParam
	ParamName  string
	ParamValue string

	// ReportResult
	WorkerID int
	Move     board.Move
	Score    int
	PV       []board.Move

	// ReportStats
	Nodes            uint64
	HashFullPermille int

	// AssignThreads
	ThreadCount int
}

// Communicator is one end of a FIFO command link between a parent and a
// child worker. Both the in-process and transport implementations satisfy
// it identically so internal/worker never knows which one it's holding.
type Communicator interface {
	// Send enqueues cmd, applying the coalescing rules of spec.md 4.H:
	// a new SetParam replaces any still-unconsumed SetParam already
	// queued; a new StartSearch/StopSearch instead sweeps any pending
	// StartSearch, StopSearch or ReportResult out of the queue entirely
	// before being appended itself (a newer start or stop on a link
	// supersedes a not-yet-delivered prior job, result included); and a
	// new ReportStats folds its counters into an already-queued report
	// rather than replacing or appending. See startsOrStops and
	// foldReportStats below.
	Send(cmd Command)

	// Recv blocks until a command is available and returns it, or
	// returns ok=false if the link has been closed.
	Recv() (Command, bool)

	// Close shuts the link down; any blocked Recv returns ok=false.
	Close()
}

// coalesces reports whether cmd's type replaces an existing queued
// command of the same type rather than appending alongside it. Only
// SetParam uses this simple same-type replacement; StartSearch/
// StopSearch and ReportStats have their own rules (startsOrStops,
// foldReportStats) since a same-type replace isn't what spec.md 4.H
// asks for on either of those.
func coalesces(t CommandType) bool {
	return t == SetParam
}

// startsOrStops reports whether t is StartSearch or StopSearch: per
// spec.md 4.H, enqueuing either one first sweeps any pending
// StartSearch, StopSearch or ReportResult out of the queue, since a
// newer start/stop supersedes a worker's prior not-yet-delivered job
// entirely rather than coalescing alongside it.
func startsOrStops(t CommandType) bool {
	return t == StartSearch || t == StopSearch
}

// foldReportStats merges an already-queued ReportStats command with a
// newer one, per spec.md 4.H's "fold in the new counters": Nodes is a
// true counter and accumulates across the fold, while
// HashFullPermille is a point-in-time occupancy gauge and simply takes
// the newer reading.
func foldReportStats(queued, newer Command) Command {
	newer.Nodes += queued.Nodes
	return newer
}
