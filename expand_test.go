package ontograph

import (
	"errors"
	"reflect"
	"sort"
	"testing"
)

func hierarchyStore(edges ...[2]string) *Store {
	store := NewStore()
	var es []*Edge
	for _, e := range edges {
		es = append(es, &Edge{Sub: e[0], Obj: e[1], Pred: "rdfs:subClassOf"})
	}
	store.Merge(nil, es, nil)
	return store
}

func sorted(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

func TestExpandAncestors(t *testing.T) {
	snap := hierarchyStore(
		[2]string{"DOID:1781", "DOID:50"},
		[2]string{"DOID:50", "DOID:4"},
	).Snapshot()

	out, err := snap.Expand([]string{"DOID:1781"}, ExpandAncestors)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"DOID:1781", "DOID:4", "DOID:50"}
	if !reflect.DeepEqual(sorted(out), want) {
		t.Errorf("Expand = %v, want %v", out, want)
	}
}

func TestExpandDescendants(t *testing.T) {
	snap := hierarchyStore(
		[2]string{"DOID:1781", "DOID:50"},
		[2]string{"DOID:50", "DOID:4"},
	).Snapshot()

	out, err := snap.Expand([]string{"DOID:4"}, ExpandDescendants)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"DOID:1781", "DOID:4", "DOID:50"}
	if !reflect.DeepEqual(sorted(out), want) {
		t.Errorf("Expand = %v, want %v", out, want)
	}
}

func TestExpandNoneResolvesAndDedups(t *testing.T) {
	store := hierarchyStore([2]string{"DOID:1781", "DOID:4"})
	store.Merge(nil, nil, map[string]string{"OLD:1781": "DOID:1781"})
	snap := store.Snapshot()

	out, err := snap.Expand([]string{"OLD:1781", "DOID:1781"}, ExpandNone)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if !reflect.DeepEqual(out, []string{"DOID:1781"}) {
		t.Errorf("Expand = %v, want [DOID:1781]", out)
	}
}

func TestExpandDiamondIsNotACycle(t *testing.T) {
	snap := hierarchyStore(
		[2]string{"X:1", "X:2"},
		[2]string{"X:1", "X:3"},
		[2]string{"X:2", "X:4"},
		[2]string{"X:3", "X:4"},
	).Snapshot()

	out, err := snap.Expand([]string{"X:1"}, ExpandAncestors)
	if err != nil {
		t.Fatalf("diamond reported as cycle: %v", err)
	}
	want := []string{"X:1", "X:2", "X:3", "X:4"}
	if !reflect.DeepEqual(sorted(out), want) {
		t.Errorf("Expand = %v, want %v", out, want)
	}
}

func TestExpandCycleReturnsClosureAndError(t *testing.T) {
	snap := hierarchyStore(
		[2]string{"X:A", "X:B"},
		[2]string{"X:B", "X:A"},
	).Snapshot()

	out, err := snap.Expand([]string{"X:A"}, ExpandAncestors)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("err = %v, want ErrCycleDetected", err)
	}
	// Recoverable: the complete reachable closure still comes back.
	want := []string{"X:A", "X:B"}
	if !reflect.DeepEqual(sorted(out), want) {
		t.Errorf("Expand = %v, want %v", out, want)
	}
}

func TestParseExpandMode(t *testing.T) {
	for name, want := range map[string]ExpandMode{
		"":            ExpandNone,
		"none":        ExpandNone,
		"ancestors":   ExpandAncestors,
		"descendants": ExpandDescendants,
	} {
		got, err := ParseExpandMode(name)
		if err != nil || got != want {
			t.Errorf("ParseExpandMode(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseExpandMode("siblings"); err == nil {
		t.Error("ParseExpandMode(siblings) should fail")
	}
}

func TestCustomClosurePredicates(t *testing.T) {
	store := NewStore(WithClosurePredicates("BFO:0000050"))
	store.Merge(nil, []*Edge{
		{Sub: "UBERON:1", Obj: "UBERON:2", Pred: "BFO:0000050"},
		{Sub: "UBERON:1", Obj: "UBERON:3", Pred: "rdfs:subClassOf"},
	}, nil)

	out, err := store.Snapshot().Expand([]string{"UBERON:1"}, ExpandAncestors)
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	want := []string{"UBERON:1", "UBERON:2"}
	if !reflect.DeepEqual(sorted(out), want) {
		t.Errorf("Expand = %v, want %v (only the configured predicate expands)", out, want)
	}
}
