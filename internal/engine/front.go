package engine

import (
	"log"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/texelcore/texel/internal/board"
	"github.com/texelcore/texel/internal/book"
	"github.com/texelcore/texel/internal/comm"
	"github.com/texelcore/texel/internal/config"
	"github.com/texelcore/texel/internal/tablebase"
	"github.com/texelcore/texel/internal/worker"
	"github.com/texelcore/texel/sfnnue"
)

// NumWorkers is the number of parallel search workers (matches CPU cores).
var NumWorkers = runtime.GOMAXPROCS(0)

// SearchInfo contains information about the current search.
type SearchInfo struct {
	Depth    int
	Score    int
	Nodes    uint64
	Time     time.Duration
	PV       []board.Move
	HashFull int // Permille of hash table used
}

// SearchLimits specifies constraints on the search.
type SearchLimits struct {
	Depth    int           // Maximum depth (0 = no limit)
	Nodes    uint64        // Maximum nodes (0 = no limit)
	MoveTime time.Duration // Time for this move (0 = no limit)
	Infinite bool          // Search until stopped
	MultiPV  int           // Number of principal variations to find (0 or 1 = single best move)
}

// SearchResult contains the result of a single PV search.
type SearchResult struct {
	Move  board.Move
	Score int
	PV    []board.Move
	Depth int
}

// Difficulty represents the AI difficulty level, kept from the teacher's
// GUI-facing presets as a convenience wrapper over SearchLimits.
type Difficulty int

const (
	Easy   Difficulty = iota // ~2-3 ply, 500ms
	Medium                   // depth 7, 1s
	Hard                     // depth 40, 3s
)

// DifficultySettings maps difficulty to search limits.
var DifficultySettings = map[Difficulty]SearchLimits{
	Easy:   {Depth: 3, MoveTime: 500 * time.Millisecond},
	Medium: {Depth: 7, MoveTime: 1 * time.Second},
	Hard:   {Depth: 40, MoveTime: 3 * time.Second},
}

// SearchParams is the full UCI "go" parameter set the front end accepts,
// matching spec.md 4.J's startSearch(pos, moves[], searchParams).
type SearchParams struct {
	Depth     int
	Mate      int
	Nodes     uint64
	MoveTime  time.Duration
	WTime     time.Duration
	BTime     time.Duration
	WInc      time.Duration
	BInc      time.Duration
	MovesToGo int
	Infinite  bool
	Ponder    bool
}

// Engine is the chess engine's front end: it owns the transposition
// table, the worker tree and the book/tablebase/NNUE collaborators, and
// exposes the setPosition/startSearch/stopSearch surface spec.md 4.J
// describes to UCI-layer callers.
type Engine struct {
	tt *TranspositionTable

	numWorkers int
	workers    []*Worker // flat list, index matches tree node ID, for Reset/Clear/NNUE wiring
	root       *worker.Worker
	down       *comm.InProcLink
	up         *comm.InProcLink
	stopFlag   atomic.Bool
	jobID      atomic.Uint64

	pawnTables []*PawnTable

	book      *book.Book
	tablebase tablebase.Prober

	useNNUE bool
	nnueNet *sfnnue.Networks

	cfg    *config.Store
	params *config.Parameters

	position      *board.Position
	posHashes     []uint64 // repetition-detection history from game start
	gameSeed      uint64
	strength      Strength
	maxNPSOverride uint64
	difficulty    Difficulty

	searching  atomic.Bool
	searchDone chan struct{}
	listener   atomic.Value // Listener, read by worker 0's SearchFunc closure

	// OnInfo is the legacy callback hook used by internal/uci; Listener
	// implementations built from it are wired per-search in startSearch.
	OnInfo func(SearchInfo)
}

type listenerHolder struct{ l Listener }

func (e *Engine) currentListener() Listener {
	if v := e.listener.Load(); v != nil {
		return v.(listenerHolder).l
	}
	return NoopListener{}
}

func (e *Engine) setListener(l Listener) {
	e.listener.Store(listenerHolder{l: l})
}

// NewEngine creates a new chess engine with the given transposition table
// size in MB and GOMAXPROCS-many workers wired into a fan-out tree.
func NewEngine(ttSizeMB int) *Engine {
	tt := NewTranspositionTable(ttSizeMB)

	e := &Engine{
		tt:         tt,
		numWorkers: NumWorkers,
		position:   board.NewPosition(),
		strength:   FullStrength(),
		params:     config.DefaultParameters(),
	}
	e.posHashes = []uint64{e.position.Hash}
	e.buildTree(e.numWorkers)

	log.Printf("[Engine] Creating %d workers (GOMAXPROCS=%d)", e.numWorkers, runtime.GOMAXPROCS(0))

	if store, err := config.Open(); err == nil {
		e.cfg = store
		if p, err := store.LoadParameters(); err == nil {
			e.params = p
		}
	} else {
		log.Printf("[Engine] Config store unavailable, using defaults: %v", err)
	}

	return e
}

// buildTree (re)creates the worker pool and fan-out tree for n threads,
// each tree node backed by its own engine.Worker so killer/history state
// is never shared across workers (spec.md 5).
func (e *Engine) buildTree(n int) {
	if n < 1 {
		n = 1
	}
	e.numWorkers = n
	e.workers = make([]*Worker, n)
	e.pawnTables = make([]*PawnTable, n)
	for i := 0; i < n; i++ {
		e.pawnTables[i] = NewPawnTable(1)
		w := NewWorker(i, e.tt, e.pawnTables[i], &e.stopFlag)
		if e.useNNUE && e.nnueNet != nil {
			w.initNNUE(e.nnueNet)
		}
		if e.tablebase != nil {
			w.SetTablebase(e.tablebase)
		}
		e.workers[i] = w
	}

	e.down = comm.NewInProcLink()
	e.up = comm.NewInProcLink()
	newSearch := func(id int) worker.SearchFunc {
		ew := e.workers[id]
		return func(pos *board.Position, depth int, shouldStop func() bool) worker.SearchResult {
			ew.InitSearch(pos, e.posHashes)
			listener := Listener(NoopListener{})
			if id == 0 {
				listener = e.currentListener()
			}
			res := ew.RunIterative(depth, 0, shouldStop, listener)

			move, score, pv := res.Move, res.Score, res.PV
			if id == 0 && e.strength.active() {
				if picked := e.strength.pickMove(pos, 0, res.Candidates); picked != board.NoMove && picked != move {
					move = picked
					pv = []board.Move{picked}
					for _, c := range res.Candidates {
						if c.Move == picked {
							score = c.Score
							break
						}
					}
				}
			}
			return worker.SearchResult{Move: move, Score: score, PV: pv, Nodes: ew.Nodes()}
		}
	}
	e.root = worker.CreateWorkers(0, e.down, e.up, n, newSearch)
	go e.root.Run()
}

// SetPosition applies moves on top of the base position, truncating the
// repetition-history list at every irreversible move (spec.md 4.J).
func (e *Engine) SetPosition(pos *board.Position, moves []board.Move) {
	e.position = pos.Copy()
	e.posHashes = []uint64{e.position.Hash}
	for _, m := range moves {
		isIrreversible := m.IsCapture(e.position) || e.position.PieceAt(m.From()).Type() == board.Pawn
		e.position.MakeMove(m)
		e.position.UpdateCheckers()
		if isIrreversible {
			e.posHashes = e.posHashes[:0]
		}
		e.posHashes = append(e.posHashes, e.position.Hash)
	}
}

// SetPositionHistory is the legacy entry point internal/uci still calls
// directly when it has already walked the moves itself.
func (e *Engine) SetPositionHistory(hashes []uint64) {
	e.posHashes = append([]uint64(nil), hashes...)
}

// NewGame clears the transposition table and every worker's move-ordering
// state, and rolls a new strength/book random seed (spec.md 4.J).
func (e *Engine) NewGame() {
	e.Clear()
	e.gameSeed = e.gameSeed*6364136223846793005 + 1442695040888963407
	if e.gameSeed == 0 {
		e.gameSeed = uint64(time.Now().UnixNano())
	}
	e.strength.Seed = e.gameSeed
}

// SetOption applies one UCI setoption, per spec.md 4.J enqueued to be
// applied when the engine is idle; since front.go's Engine only mutates
// option-backed state between searches, it is applied immediately.
func (e *Engine) SetOption(name, value string) {
	switch name {
	case "Threads":
		if n, ok := atoiOK(value); ok && n != e.numWorkers {
			e.buildTree(n)
		}
		e.params.Threads = e.numWorkers
	case "Hash":
		if n, ok := atoiOK(value); ok {
			e.tt.Resize(n)
			e.params.HashMB = n
		}
	case "MultiPV":
		if n, ok := atoiOK(value); ok {
			e.params.MultiPV = n
		}
	case "MinProbeDepth":
		if n, ok := atoiOK(value); ok {
			e.params.MinProbeDepth = n
		}
	case "Strength":
		if n, ok := atoiOK(value); ok {
			e.params.Strength = n
			e.strength.Level = n
		}
	case "LimitStrength":
		b := value == "true"
		e.params.LimitStrength = b
		e.strength.Enabled = b
	case "UCI_Elo":
		if n, ok := atoiOK(value); ok {
			e.params.UCIElo = n
		}
	case "MaxNPS":
		if n, ok := atoiOK(value); ok {
			e.params.MaxNPS = n
			e.maxNPSOverride = uint64(n)
		}
	case "OwnBook":
		e.params.OwnBook = value == "true"
	case "Contempt":
		if n, ok := atoiOK(value); ok {
			e.params.Contempt = n
			e.tt.SetWhiteContempt(n)
		}
	case "AnalyzeContempt":
		e.params.AnalyzeContempt = value
	case "AutoContempt":
		e.params.AutoContempt = value == "true"
	case "Opponent":
		e.params.Opponent = value
	case "AnalysisAgeHash":
		e.params.AnalysisAgeHash = value == "true"
	case "ContemptFile":
		e.params.ContemptFilePath = value
	case "Clear Hash":
		e.Clear()
	}
	if e.cfg != nil {
		e.cfg.SaveParameters(e.params)
	}
}

func atoiOK(s string) (int, bool) {
	neg := false
	i := 0
	if len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		i = 1
	}
	if i >= len(s) {
		return 0, false
	}
	n := 0
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	if neg {
		n = -n
	}
	return n, true
}

// LoadBook loads an opening book from a Polyglot file.
func (e *Engine) LoadBook(filename string) error {
	b, err := book.LoadPolyglot(filename)
	if err != nil {
		return err
	}
	e.book = b
	return nil
}

// SetBook sets the opening book.
func (e *Engine) SetBook(b *book.Book) { e.book = b }

// HasBook returns true if an opening book is loaded.
func (e *Engine) HasBook() bool { return e.book != nil }

// SetTablebase sets the tablebase prober.
func (e *Engine) SetTablebase(tb tablebase.Prober) {
	e.tablebase = tb
	for _, w := range e.workers {
		w.SetTablebase(tb)
	}
}

// SetSyzygyProbeDepth is a no-op placeholder matching the teacher's UCI
// call site; depth-gating probes are a tablebase-package concern.
func (e *Engine) SetSyzygyProbeDepth(depth int) {}

// EnableLichessTablebase enables Lichess online tablebase lookups.
func (e *Engine) EnableLichessTablebase() { e.SetTablebase(tablebase.NewLichessProber()) }

// HasTablebase returns true if a tablebase is available.
func (e *Engine) HasTablebase() bool { return e.tablebase != nil && e.tablebase.Available() }

// LoadNNUE loads NNUE network files.
func (e *Engine) LoadNNUE(bigPath, smallPath string) error {
	nets, err := sfnnue.LoadNetworks(bigPath, smallPath)
	if err != nil {
		log.Printf("[Engine] Failed to load NNUE: %v", err)
		return err
	}
	e.nnueNet = nets
	for _, w := range e.workers {
		w.initNNUE(nets)
	}
	log.Printf("[Engine] NNUE networks loaded successfully")
	return nil
}

// SetUseNNUE enables or disables NNUE evaluation.
func (e *Engine) SetUseNNUE(use bool) {
	e.useNNUE = use
	for _, w := range e.workers {
		w.useNNUE = use
	}
}

// UseNNUE returns whether NNUE evaluation is enabled.
func (e *Engine) UseNNUE() bool { return e.useNNUE }

// HasNNUE returns whether NNUE networks are loaded.
func (e *Engine) HasNNUE() bool { return e.nnueNet != nil }

// Stop stops the current search.
func (e *Engine) Stop() { e.StopSearch() }

// Clear clears the transposition table and every worker's scratch state.
func (e *Engine) Clear() {
	e.tt.Clear()
	for _, w := range e.workers {
		w.Reset()
	}
}

// Perft performs a perft test (for debugging move generation).
func (e *Engine) Perft(pos *board.Position, depth int) uint64 {
	if depth == 0 {
		return 1
	}
	moves := pos.GenerateLegalMoves()
	if depth == 1 {
		return uint64(moves.Len())
	}
	var nodes uint64
	for i := 0; i < moves.Len(); i++ {
		move := moves.Get(i)
		undo := pos.MakeMove(move)
		nodes += e.Perft(pos, depth-1)
		pos.UnmakeMove(move, undo)
	}
	return nodes
}

// Evaluate returns the static evaluation of a position.
func (e *Engine) Evaluate(pos *board.Position) int { return Evaluate(pos) }

// SetDifficulty sets the engine difficulty for the GUI-style Search entry
// point below.
func (e *Engine) SetDifficulty(d Difficulty) { e.difficulty = d }

// Search finds the best move for pos under the engine's current
// difficulty preset.
func (e *Engine) Search(pos *board.Position) board.Move {
	return e.SearchWithLimits(pos, DifficultySettings[e.difficulty])
}

// SearchMultiPV returns up to limits.MultiPV distinct best lines for pos.
// Rather than re-searching once per excluded move, it reads the final
// root candidate list RunIterative already ranks (spec.md 4.G's
// end-of-iteration reordering), which is far cheaper than N independent
// full-width searches; only the first line's score comes from a
// full-window search, the other lines' scores are null-window bounds.
func (e *Engine) SearchMultiPV(pos *board.Position, limits SearchLimits) []SearchResult {
	numPV := limits.MultiPV
	if numPV <= 0 {
		numPV = 1
	}

	e.SetPosition(pos, nil)
	e.stopFlag.Store(false)
	e.tt.NewSearch()
	for _, w := range e.workers {
		w.Reset()
	}

	maxDepth := MaxPly
	if limits.Depth > 0 {
		maxDepth = limits.Depth
	}
	maxNodes := limits.Nodes

	w := e.workers[0]
	w.InitSearch(e.position, e.posHashes)

	deadline := time.Time{}
	if limits.MoveTime > 0 {
		deadline = time.Now().Add(limits.MoveTime)
	}
	shouldStop := func() bool {
		if e.stopFlag.Load() {
			return true
		}
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	res := w.RunIterative(maxDepth, maxNodes, shouldStop, NoopListener{})

	if numPV > len(res.Candidates) {
		numPV = len(res.Candidates)
	}
	results := make([]SearchResult, numPV)
	for i := 0; i < numPV; i++ {
		c := res.Candidates[i]
		pv := []board.Move{c.Move}
		if i == 0 {
			pv = res.PV
		}
		results[i] = SearchResult{Move: c.Move, Score: c.Score, PV: pv, Depth: res.Depth}
	}
	return results
}

// getTotalNodes sums the node counts across every worker in the tree.
func (e *Engine) getTotalNodes() uint64 {
	var total uint64
	for _, w := range e.workers {
		total += w.Nodes()
	}
	return total
}
