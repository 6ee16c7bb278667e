package book

import (
	"os"
	"testing"

	"github.com/texelcore/texel/internal/board"
)

func TestRecordMarshalRoundTrip(t *testing.T) {
	rec := record{hashKey: 0xdeadbeefcafef00d, bestMove: 1234, searchScore: -321, searchTime: 5000}
	buf := rec.marshal()
	got := unmarshalRecord(buf[:])
	if got != rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestStoreAddChildLinksAndIndexes(t *testing.T) {
	s := NewStore()
	root := s.Root()

	start := board.NewPosition()
	legal := start.GenerateLegalMoves()
	if legal.Len() == 0 {
		t.Fatal("start position should have legal moves")
	}
	m := legal.Get(0)

	childPos := start.Copy()
	childPos.MakeMove(m)
	childPos.UpdateCheckers()
	child := s.NodeFor(childPos)
	s.AddChild(root, m, child)

	got, ok := s.Find(childPos.PolyglotHash())
	if !ok || got != child {
		t.Fatal("expected the new child to be indexed by its hash")
	}
	linked, ok := root.Child(m)
	if !ok || linked != child {
		t.Fatal("expected root to link to the child by move")
	}
}

func TestStoreMarkPendingCountsInTreeData(t *testing.T) {
	s := NewStore()
	n, _ := s.GetTreeData()
	if n != 1 {
		t.Fatalf("expected a single root node in a fresh store, got %d", n)
	}
	s.MarkPending(s.Root())
	_, pending := s.GetTreeData()
	if pending != 1 {
		t.Fatalf("expected 1 pending node, got %d", pending)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewStore()
	start := board.NewPosition()
	legal := start.GenerateLegalMoves()
	m := legal.Get(0)

	childPos := start.Copy()
	childPos.MakeMove(m)
	childPos.UpdateCheckers()
	child := s.NodeFor(childPos)
	s.SetSearchResult(child, m, 42, 1500)
	s.AddChild(s.Root(), m, child)

	f, err := os.CreateTemp(t.TempDir(), "book-*.dat")
	if err != nil {
		t.Fatal(err)
	}
	path := f.Name()
	f.Close()

	if err := s.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadStore(path)
	if err != nil {
		t.Fatalf("LoadStore: %v", err)
	}

	loadedChild, ok := loaded.Root().Child(m)
	if !ok {
		t.Fatal("expected the loaded book to reconstruct the parent/child link via move replay")
	}
	if loadedChild.SearchScore != 42 || loadedChild.SearchTime != 1500 {
		t.Fatalf("loaded child search result mismatch: %+v", loadedChild)
	}
}

func TestStoreGetBookPVFollowsBestChild(t *testing.T) {
	s := NewStore()
	start := board.NewPosition()
	legal := start.GenerateLegalMoves()

	m1, m2 := legal.Get(0), legal.Get(1)
	pos1 := start.Copy()
	pos1.MakeMove(m1)
	pos1.UpdateCheckers()
	c1 := s.NodeFor(pos1)
	s.SetSearchResult(c1, board.NoMove, -100, 0)
	s.AddChild(s.Root(), m1, c1)

	pos2 := start.Copy()
	pos2.MakeMove(m2)
	pos2.UpdateCheckers()
	c2 := s.NodeFor(pos2)
	s.SetSearchResult(c2, board.NoMove, 100, 0)
	s.AddChild(s.Root(), m2, c2)

	pv := s.GetBookPV(start)
	if len(pv) == 0 {
		t.Fatal("expected a non-empty PV")
	}
	// c1's negated score (100) beats c2's negated score (-100), so the
	// PV should follow m1.
	if pv[0] != m1 {
		t.Fatalf("GetBookPV head = %v, want m1 (%v)", pv[0], m1)
	}
}
