package comm

import (
	"testing"
	"time"
)

func TestInProcLinkCoalescesStartSearch(t *testing.T) {
	l := NewInProcLink()
	l.Send(Command{Type: StartSearch, Depth: 4})
	l.Send(Command{Type: StartSearch, Depth: 8})

	cmd, ok := l.Recv()
	if !ok {
		t.Fatal("expected a command")
	}
	if cmd.Depth != 8 {
		t.Fatalf("expected coalesced StartSearch to carry the latest depth, got %d", cmd.Depth)
	}
}

func TestInProcLinkPreservesFIFOOrderAcrossTypes(t *testing.T) {
	l := NewInProcLink()
	l.Send(Command{Type: InitSearch, JobID: 1})
	l.Send(Command{Type: StartSearch, JobID: 2})
	l.Send(Command{Type: Quit, JobID: 3})

	var got []CommandType
	for i := 0; i < 3; i++ {
		cmd, ok := l.Recv()
		if !ok {
			t.Fatal("expected a command")
		}
		got = append(got, cmd.Type)
	}
	want := []CommandType{InitSearch, StartSearch, Quit}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestInProcLinkStopAckCompleteness(t *testing.T) {
	l := NewInProcLink()
	l.BeginStopWait(2)

	if done := l.AckChild(); done {
		t.Fatal("should not be done with self and one child still outstanding")
	}
	l.AckSelf()
	if done := l.AckChild(); !done {
		t.Fatal("expected done once self and all children have acked")
	}
}

func TestInProcLinkCloseUnblocksRecv(t *testing.T) {
	l := NewInProcLink()
	done := make(chan struct{})
	go func() {
		_, ok := l.Recv()
		if ok {
			t.Error("expected Recv to report closed")
		}
		close(done)
	}()
	l.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestTransportLinkRoundTrip(t *testing.T) {
	l := NewTransportLink()
	l.Send(Command{Type: SetParam, JobID: 7, ParamName: "Hash", ParamValue: "256"})

	cmd, ok := l.Recv()
	if !ok {
		t.Fatal("expected a command")
	}
	if cmd.Type != SetParam || cmd.JobID != 7 || cmd.ParamName != "Hash" || cmd.ParamValue != "256" {
		t.Fatalf("round trip mismatch: %+v", cmd)
	}
}

func TestInProcLinkStartSearchSweepsReportResultAndOppositeType(t *testing.T) {
	l := NewInProcLink()
	l.Send(Command{Type: InitSearch, JobID: 1})
	l.Send(Command{Type: ReportResult, JobID: 2, Score: 17})
	l.Send(Command{Type: StopSearch, JobID: 3})
	l.Send(Command{Type: StartSearch, JobID: 4, Depth: 6})

	var got []CommandType
	for i := 0; i < 2; i++ {
		cmd, ok := l.Recv()
		if !ok {
			t.Fatal("expected a command")
		}
		got = append(got, cmd.Type)
	}
	want := []CommandType{InitSearch, StartSearch}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ReportResult and the superseded StopSearch swept away, got %v want %v", got, want)
		}
	}
}

func TestInProcLinkReportStatsFoldsNodes(t *testing.T) {
	l := NewInProcLink()
	l.Send(Command{Type: ReportStats, Nodes: 1000, HashFullPermille: 10})
	l.Send(Command{Type: ReportStats, Nodes: 500, HashFullPermille: 25})

	cmd, ok := l.Recv()
	if !ok {
		t.Fatal("expected a command")
	}
	if cmd.Nodes != 1500 {
		t.Fatalf("expected folded Nodes to accumulate to 1500, got %d", cmd.Nodes)
	}
	if cmd.HashFullPermille != 25 {
		t.Fatalf("expected HashFullPermille to take the newer reading, got %d", cmd.HashFullPermille)
	}
}

func TestTransportLinkReportStatsCarriesCountersAndFolds(t *testing.T) {
	l := NewTransportLink()
	l.Send(Command{Type: ReportStats, Nodes: 2000, HashFullPermille: 40})
	l.Send(Command{Type: ReportStats, Nodes: 750, HashFullPermille: 55})

	cmd, ok := l.Recv()
	if !ok {
		t.Fatal("expected a command")
	}
	if cmd.Nodes != 2750 {
		t.Fatalf("expected the transport wire format to carry and fold Nodes, got %d", cmd.Nodes)
	}
	if cmd.HashFullPermille != 55 {
		t.Fatalf("expected HashFullPermille to round-trip as the newer reading, got %d", cmd.HashFullPermille)
	}
}

func TestTransportLinkStartSearchSweepsReportResultAndOppositeType(t *testing.T) {
	l := NewTransportLink()
	l.Send(Command{Type: InitSearch, JobID: 1})
	l.Send(Command{Type: ReportResult, JobID: 2})
	l.Send(Command{Type: StopSearch, JobID: 3})
	l.Send(Command{Type: StartSearch, JobID: 4})

	var got []CommandType
	for i := 0; i < 2; i++ {
		cmd, ok := l.Recv()
		if !ok {
			t.Fatal("expected a command")
		}
		got = append(got, cmd.Type)
	}
	want := []CommandType{InitSearch, StartSearch}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ReportResult and the superseded StopSearch swept away over transport, got %v want %v", got, want)
		}
	}
}

func TestTransportLinkDropsOversizeSetParam(t *testing.T) {
	l := NewTransportLink()
	big := make([]byte, maxSetParamPayload+1)
	for i := range big {
		big[i] = 'x'
	}
	l.Send(Command{Type: SetParam, ParamName: "ContemptFile", ParamValue: string(big)})
	l.Send(Command{Type: Quit})

	cmd, ok := l.Recv()
	if !ok || cmd.Type != Quit {
		t.Fatalf("expected the oversize SET_PARAM to be dropped, leaving only Quit; got %+v ok=%v", cmd, ok)
	}
}
