package worker

import (
	"testing"
	"time"

	"github.com/texelcore/texel/internal/board"
	"github.com/texelcore/texel/internal/comm"
)

func searchStub(id int) SearchFunc {
	return func(pos *board.Position, depth int, shouldStop func() bool) SearchResult {
		for !shouldStop() {
			return SearchResult{Move: board.Move(id), Score: id, Nodes: 1}
		}
		return SearchResult{}
	}
}

func TestCreateWorkersFanOutBoundedByMaxChildren(t *testing.T) {
	down, up := comm.NewInProcLink(), comm.NewInProcLink()
	root := CreateWorkers(0, down, up, 9, searchStub)
	if root == nil {
		t.Fatal("expected a root worker")
	}
	if len(root.children) > MaxChildrenPerNode {
		t.Fatalf("root fanned out to %d children, want <= %d", len(root.children), MaxChildrenPerNode)
	}

	seen := map[int]bool{root.ID: true}
	var walk func(w *Worker)
	walk = func(w *Worker) {
		for _, c := range w.children {
			if seen[c.w.ID] {
				t.Fatalf("duplicate worker ID %d", c.w.ID)
			}
			seen[c.w.ID] = true
			if len(c.w.children) > MaxChildrenPerNode {
				t.Fatalf("node %d fanned out to %d children, want <= %d", c.w.ID, len(c.w.children), MaxChildrenPerNode)
			}
			walk(c.w)
		}
	}
	walk(root)
	if len(seen) != 9 {
		t.Fatalf("expected 9 distinct worker IDs total, got %d", len(seen))
	}
}

func TestWorkerRunRootReportsResultAndQuits(t *testing.T) {
	down, up := comm.NewInProcLink(), comm.NewInProcLink()
	root := CreateWorkers(0, down, up, 3, searchStub)
	go root.Run()

	down.Send(comm.Command{Type: comm.StartSearch, JobID: 1, Position: board.NewPosition(), Depth: 1})

	deadline := time.After(2 * time.Second)
	results := 0
	for results < 3 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ReportResult from every worker")
		default:
		}
		cmd, ok := up.Recv()
		if !ok {
			t.Fatal("up link closed early")
		}
		if cmd.Type == comm.ReportResult {
			results++
		}
	}

	down.Send(comm.Command{Type: comm.Quit, JobID: 1})
	cmd, ok := up.Recv()
	if !ok || cmd.Type != comm.QuitAck {
		t.Fatalf("expected QuitAck after Quit, got %+v ok=%v", cmd, ok)
	}
}

func TestWorkerDiscardsResultFromSupersededJob(t *testing.T) {
	down, up := comm.NewInProcLink(), comm.NewInProcLink()
	slow := func(id int) SearchFunc {
		return func(pos *board.Position, depth int, shouldStop func() bool) SearchResult {
			time.Sleep(50 * time.Millisecond)
			return SearchResult{Move: board.Move(id), Score: id, Nodes: 1}
		}
	}
	root := CreateWorkers(0, down, up, 1, slow)
	go root.Run()

	down.Send(comm.Command{Type: comm.StartSearch, JobID: 1, Position: board.NewPosition(), Depth: 1})
	time.Sleep(10 * time.Millisecond) // let Run() dequeue job 1 before job 2 is enqueued
	down.Send(comm.Command{Type: comm.StartSearch, JobID: 2, Position: board.NewPosition(), Depth: 1})

	time.Sleep(500 * time.Millisecond)

	down.Send(comm.Command{Type: comm.Quit, JobID: 2})
	for {
		cmd, ok := up.Recv()
		if !ok {
			t.Fatal("up link closed before QuitAck")
		}
		if cmd.Type == comm.ReportResult && cmd.JobID != 2 {
			t.Fatalf("received a report for superseded job %d", cmd.JobID)
		}
		if cmd.Type == comm.QuitAck {
			return
		}
	}
}
