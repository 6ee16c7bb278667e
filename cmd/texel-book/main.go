package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/texelcore/texel/internal/board"
	"github.com/texelcore/texel/internal/book"
	"github.com/texelcore/texel/internal/config"
	"github.com/texelcore/texel/internal/engine"
)

func main() {
	bookPath := flag.String("book", "book.dat", "opening book file to load/extend")
	computeMs := flag.Int("movetime", 5000, "per-node search time in ms")
	threads := flag.Int("threads", 1, "threads per node search")
	hashMB := flag.Int("hash", 64, "transposition table size in MB")
	focusHash := flag.String("focus", "", "restrict expansion to the subtree rooted at this book hash (hex), default the whole book")
	flag.Parse()

	b, err := book.LoadStore(*bookPath)
	if err != nil {
		log.Printf("Starting a new book (%v)", err)
		b = book.NewStore()
	}

	if store, err := config.Open(); err == nil {
		defer store.Close()
		if w, err := store.LoadBookWeights(); err == nil {
			b.SetWeights(w.BookDepthCost, w.OwnPathErrorCost, w.OtherPathErrorCost)
		}
	}

	eng := engine.NewEngine(*hashMB)
	eng.SetDifficulty(engine.Hard)

	search := func(pos *board.Position, moveTime time.Duration, n int) (board.Move, int16, time.Duration) {
		eng.SetOption("Threads", itoa(n))
		eng.SetPosition(pos, nil)

		start := time.Now()
		done := make(chan struct{})
		var score int16
		lst := &bookListener{onPlayed: func(_, _ board.Move) { close(done) }, onDepth: func(s int) { score = int16(s) }}
		eng.StartSearch(engine.SearchParams{MoveTime: moveTime}, lst)
		<-done

		return lst.best, score, time.Since(start)
	}

	builder := book.NewBuilder(b, search)
	builder.ComputationTime = time.Duration(*computeMs) * time.Millisecond
	builder.Threads = *threads
	if *focusHash != "" {
		h, err := strconv.ParseUint(*focusHash, 16, 64)
		if err != nil {
			log.Fatalf("invalid -focus hash %q: %v", *focusHash, err)
		}
		builder.FocusHash = h
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("Stopping after the current node finishes...")
		builder.Stop()
	}()

	builder.Run()

	if err := b.Save(*bookPath); err != nil {
		log.Fatalf("saving book: %v", err)
	}
	n, pending := b.GetTreeData()
	log.Printf("Book saved: %d nodes, %d pending", n, pending)
}

// bookListener adapts engine.Listener to the single-shot synchronous
// search the book builder needs: it records the last-seen score and
// resolves once the search reports its played move.
type bookListener struct {
	onDepth  func(score int)
	onPlayed func(best, ponder board.Move)
	best     board.Move
}

func (l *bookListener) NotifyDepth(_ int, score int, _ []board.Move, _ uint64) {
	if l.onDepth != nil {
		l.onDepth(score)
	}
}
func (l *bookListener) NotifyCurrMove(int, board.Move, int) {}
func (l *bookListener) NotifyStats(uint64, int)             {}
func (l *bookListener) NotifyPlayedMove(best, ponder board.Move) {
	l.best = best
	if l.onPlayed != nil {
		l.onPlayed(best, ponder)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	s := ""
	for n > 0 {
		s = string('0'+byte(n%10)) + s
		n /= 10
	}
	return s
}
