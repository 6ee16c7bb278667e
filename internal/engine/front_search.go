package engine

import (
	"time"

	"github.com/texelcore/texel/internal/board"
	"github.com/texelcore/texel/internal/comm"
	"github.com/texelcore/texel/internal/tablebase"
)

// Time-limit formula constants (spec.md 4.J).
const (
	assumedMovesToGo   = 40
	bufferTimeMs       = 50
	maxTimeUsagePercent = 500 // maxTime may reach up to 5x minTime
)

// computeTimeLimits implements spec.md 4.J's time-limit formula:
// moves = max(1, movesToGo or an assumed default); margin shaves a safety
// buffer off the clock; tLimit spreads the remaining time plus increment
// evenly; maxTime widens tLimit by a factor that grows with moves
// remaining, clamped to [2.0, maxTimeUsagePercent/100].
func computeTimeLimits(timeLeft, inc time.Duration, movesToGo int) (minTime, maxTime time.Duration) {
	moves := movesToGo
	if moves <= 0 {
		moves = assumedMovesToGo
	}
	if moves < 1 {
		moves = 1
	}

	margin := time.Duration(bufferTimeMs) * time.Millisecond
	if cap := timeLeft * 9 / 10; cap < margin {
		margin = cap
	}
	ceiling := timeLeft - margin
	if ceiling < time.Millisecond {
		ceiling = time.Millisecond
	}

	tLimit := (timeLeft + inc*time.Duration(moves-1) - margin) / time.Duration(moves)
	minTime = clampDuration(tLimit, time.Millisecond, ceiling)

	mult := clampFloat(float64(moves)*0.5, 2.0, float64(maxTimeUsagePercent)/100)
	maxTime = clampDuration(time.Duration(float64(minTime)*mult), time.Millisecond, ceiling)
	return
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// StartSearch computes time limits from params, tries the opening book
// and tablebase before falling back to tree search, then runs the search
// asynchronously, invoking listener as results arrive and finally with
// the chosen move and a ponder move extracted from the TT (spec.md 4.J).
func (e *Engine) StartSearch(params SearchParams, listener Listener) {
	if listener == nil {
		listener = NoopListener{}
	}
	e.setListener(listener)
	pos := e.position

	if e.params.OwnBook && e.book != nil {
		if m, ok := e.book.Probe(pos); ok {
			listener.NotifyPlayedMove(m, board.NoMove)
			return
		}
	}

	if e.tablebase != nil && e.tablebase.Available() {
		if tablebase.CountPieces(pos) <= e.tablebase.MaxPieces() {
			if r := e.tablebase.ProbeRoot(pos); r.Found && r.Move != board.NoMove {
				listener.NotifyPlayedMove(r.Move, board.NoMove)
				return
			}
		}
	}

	if e.strength.active() && e.numWorkers != 1 {
		e.buildTree(1)
	}

	maxDepth := MaxPly
	if params.Depth > 0 {
		maxDepth = params.Depth
	}

	var deadline time.Time
	switch {
	case params.MoveTime > 0:
		deadline = time.Now().Add(params.MoveTime)
	case !params.Infinite && (params.WTime > 0 || params.BTime > 0):
		var t, inc time.Duration
		if pos.SideToMove == board.White {
			t, inc = params.WTime, params.WInc
		} else {
			t, inc = params.BTime, params.BInc
		}
		_, maxTime := computeTimeLimits(t, inc, params.MovesToGo)
		deadline = time.Now().Add(maxTime)
	}

	maxNPS := e.maxNPSOverride
	if maxNPS == 0 && e.strength.active() {
		maxNPS = npsCapForElo(e.strength.Level)
	}

	e.stopFlag.Store(false)
	e.tt.NewSearch()
	for _, w := range e.workers {
		w.Reset()
	}

	job := e.jobID.Add(1)
	e.searching.Store(true)
	e.searchDone = make(chan struct{})

	var deadlineNanos int64
	if !deadline.IsZero() {
		deadlineNanos = deadline.UnixNano()
	}

	e.down.Send(comm.Command{
		Type: comm.StartSearch, JobID: job, Position: pos.Copy(),
		Depth: maxDepth, DeadlineNanos: deadlineNanos,
	})

	go e.driveSearch(job, deadline, params, maxNPS, listener)
}

// driveSearch waits for worker 0's ReportResult for job, enforcing the
// deadline and node/NPS limits by issuing StopSearch, then reports the
// final move and a ponder move to listener.
func (e *Engine) driveSearch(job uint64, deadline time.Time, params SearchParams, maxNPS uint64, listener Listener) {
	defer close(e.searchDone)
	defer e.searching.Store(false)

	if !deadline.IsZero() {
		timer := time.AfterFunc(time.Until(deadline), func() { e.stopSearchJob(job) })
		defer timer.Stop()
	}

	startTime := time.Now()
	var result comm.Command
	haveResult := false

	for !haveResult {
		cmd, ok := e.up.Recv()
		if !ok {
			return
		}
		switch cmd.Type {
		case comm.ReportResult:
			if cmd.JobID != job {
				continue
			}
			if cmd.WorkerID == 0 {
				result = cmd
				haveResult = true
			}
		case comm.ReportStats:
			listener.NotifyStats(cmd.Nodes, cmd.HashFullPermille)
		}

		if !haveResult {
			nodes := e.getTotalNodes()
			if params.Nodes > 0 && nodes >= params.Nodes {
				e.stopSearchJob(job)
			}
			if maxNPS > 0 {
				elapsed := time.Since(startTime)
				if elapsed > 0 && uint64(float64(nodes)/elapsed.Seconds()) > maxNPS {
					e.stopSearchJob(job)
				}
			}
		}
	}

	ponder := e.extractPonderMove(result.Move)
	listener.NotifyPlayedMove(result.Move, ponder)
}

// stopSearchJob issues STOP_SEARCH for job if it is still the current job
// (a superseded job's late timer firing is a no-op).
func (e *Engine) stopSearchJob(job uint64) {
	if e.jobID.Load() != job {
		return
	}
	e.stopFlag.Store(true)
	e.down.Send(comm.Command{Type: comm.StopSearch, JobID: job})
}

// StopSearch stops the search in progress, if any, and waits for it to
// finish reporting (spec.md 4.J).
func (e *Engine) StopSearch() {
	if !e.searching.Load() {
		return
	}
	e.stopSearchJob(e.jobID.Load())
	<-e.searchDone
}

// StartPonder begins searching the position reached by playing ponderMove
// on top of the current position, in anticipation of the opponent
// actually playing it.
func (e *Engine) StartPonder(ponderMove board.Move, params SearchParams, listener Listener) {
	e.SetPosition(e.position, []board.Move{ponderMove})
	params.Infinite = true
	e.StartSearch(params, listener)
}

// PonderHit signals that the opponent played the pondered move. The
// in-flight infinite search already covers this position; the deadline
// the real time controls imply is enforced by re-arming a stop timer.
func (e *Engine) PonderHit(params SearchParams) {
	if !e.searching.Load() {
		return
	}
	job := e.jobID.Load()

	var deadline time.Time
	switch {
	case params.MoveTime > 0:
		deadline = time.Now().Add(params.MoveTime)
	case params.WTime > 0 || params.BTime > 0:
		var t, inc time.Duration
		if e.position.SideToMove == board.White {
			t, inc = params.WTime, params.WInc
		} else {
			t, inc = params.BTime, params.BInc
		}
		_, maxTime := computeTimeLimits(t, inc, params.MovesToGo)
		deadline = time.Now().Add(maxTime)
	default:
		return
	}
	time.AfterFunc(time.Until(deadline), func() { e.stopSearchJob(job) })
}

// extractPonderMove walks the TT one move past bestMove to find the
// expected reply, for the "ponder" UCI suggestion.
func (e *Engine) extractPonderMove(bestMove board.Move) board.Move {
	if bestMove == board.NoMove {
		return board.NoMove
	}
	pos := e.position.Copy()
	legal := pos.GenerateLegalMoves()
	found := false
	for i := 0; i < legal.Len(); i++ {
		if legal.Get(i) == bestMove {
			found = true
			break
		}
	}
	if !found {
		return board.NoMove
	}
	pos.MakeMove(bestMove)
	pv := ExtractPV(e.tt, pos, 1)
	if len(pv) == 0 {
		return board.NoMove
	}
	return pv[0]
}

// SearchWithLimits finds the best move with specific search limits; a
// thin synchronous wrapper over SetPosition+StartSearch for callers
// (internal/uci, cmd/) that don't need the async listener surface
// directly. It blocks until the search reports its move, except with
// limits.Infinite, where it returns board.NoMove at once and leaves the
// search running.
func (e *Engine) SearchWithLimits(pos *board.Position, limits SearchLimits) board.Move {
	e.SetPosition(pos, nil)
	params := SearchParams{Depth: limits.Depth, Nodes: limits.Nodes, MoveTime: limits.MoveTime, Infinite: limits.Infinite}

	resultCh := make(chan board.Move, 1)
	lst := &syncListener{onInfo: e.OnInfo, start: time.Now(), hashFull: func() int { return e.tt.HashFullPermille() }, done: resultCh}
	e.StartSearch(params, lst)

	if limits.Infinite {
		return board.NoMove
	}
	return <-resultCh
}

// syncListener bridges the async Listener interface back to the legacy
// OnInfo callback and a result channel for SearchWithLimits.
type syncListener struct {
	onInfo   func(SearchInfo)
	start    time.Time
	hashFull func() int
	done     chan board.Move
}

func (l *syncListener) NotifyDepth(depth, score int, pv []board.Move, nodes uint64) {
	if l.onInfo == nil {
		return
	}
	l.onInfo(SearchInfo{
		Depth: depth, Score: score, Nodes: nodes,
		Time: time.Since(l.start), PV: pv, HashFull: l.hashFull(),
	})
}

func (l *syncListener) NotifyCurrMove(depth int, m board.Move, moveNumber int) {}
func (l *syncListener) NotifyStats(nodes uint64, hashFullPermille int)         {}
func (l *syncListener) NotifyPlayedMove(best, ponder board.Move) {
	l.done <- best
}
