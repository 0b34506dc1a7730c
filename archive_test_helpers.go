package ontograph

import (
	"bytes"
	"testing"
)

// Test helper functions shared by the SQLite and PostgreSQL archive tests.

// archiveFactory creates a fresh, empty archive for one test.
type archiveFactory func() (*Archive, error)

// sampleSnapshot builds a small graph with nodes, edges and an alias.
func sampleSnapshot() *Snapshot {
	disease := NewNode("DOID:4")
	disease.Label = "disease"
	disease.AddCategory("disease")
	disease.AddProperty("synonym", "disorder")

	angio := NewNode("DOID:1781")
	angio.Label = "thyroid angiosarcoma"
	angio.AddCategory("disease")
	angio.Deprecated = true

	store := NewStore()
	store.Merge(
		[]*Node{disease, angio},
		[]*Edge{
			{Sub: "DOID:1781", Obj: "DOID:4", Pred: "rdfs:subClassOf"},
			{Sub: "DOID:1781", Obj: "DOID:4", Pred: "rdfs:subClassOf", Meta: map[string]string{"inferred": "true"}},
		},
		map[string]string{"OLD:1781": "DOID:1781"},
	)
	return store.Snapshot()
}

// runArchiveSuite runs the shared archive tests against a backend factory.
func runArchiveSuite(t *testing.T, factory archiveFactory) {
	t.Run("SaveLoadRoundTrip", func(t *testing.T) {
		a := mustArchive(t, factory)
		snap := sampleSnapshot()

		if err := a.SaveSnapshot(snap); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}
		if got := a.NodeCount(); got != 2 {
			t.Errorf("NodeCount = %d, want 2", got)
		}
		// The two subClassOf edges collapse on (sub, pred, obj).
		if got := a.EdgeCount(); got != 1 {
			t.Errorf("EdgeCount = %d, want 1", got)
		}

		loaded := NewStore()
		if err := a.LoadGraph(loaded); err != nil {
			t.Fatalf("LoadGraph failed: %v", err)
		}
		ls := loaded.Snapshot()
		if ls.NodeCount() != 2 || ls.EdgeCount() != 1 {
			t.Fatalf("loaded graph has %d nodes, %d edges; want 2, 1", ls.NodeCount(), ls.EdgeCount())
		}

		n, ok := ls.Node("DOID:4")
		if !ok {
			t.Fatal("loaded graph is missing DOID:4")
		}
		if n.Label != "disease" {
			t.Errorf("DOID:4 label = %q, want %q", n.Label, "disease")
		}
		if got := n.Properties["synonym"]; len(got) != 1 || got[0] != "disorder" {
			t.Errorf("DOID:4 synonyms = %v, want [disorder]", got)
		}

		if got := ls.Resolve("OLD:1781"); got != "DOID:1781" {
			t.Errorf("Resolve(OLD:1781) = %q, want DOID:1781", got)
		}
		dep, _ := ls.Node("DOID:1781")
		if !dep.Deprecated {
			t.Error("DOID:1781 lost its deprecation flag")
		}
	})

	t.Run("PutNodeUpsert", func(t *testing.T) {
		a := mustArchive(t, factory)

		n := NewNode("HP:0000001")
		n.Label = "All"
		if err := a.PutNode(n); err != nil {
			t.Fatalf("PutNode failed: %v", err)
		}
		n.Label = "root"
		if err := a.PutNode(n); err != nil {
			t.Fatalf("PutNode (second) failed: %v", err)
		}
		if got := a.NodeCount(); got != 1 {
			t.Fatalf("NodeCount = %d, want 1", got)
		}

		loaded := NewStore()
		if err := a.LoadGraph(loaded); err != nil {
			t.Fatalf("LoadGraph failed: %v", err)
		}
		got, _ := loaded.Snapshot().Node("HP:0000001")
		if got.Label != "root" {
			t.Errorf("label after upsert = %q, want %q", got.Label, "root")
		}
	})

	t.Run("PutEdgeDedup", func(t *testing.T) {
		a := mustArchive(t, factory)

		e := &Edge{Sub: "DOID:1781", Obj: "DOID:4", Pred: "rdfs:subClassOf"}
		if err := a.PutEdge(e); err != nil {
			t.Fatalf("PutEdge failed: %v", err)
		}
		if err := a.PutEdge(e); err != nil {
			t.Fatalf("PutEdge (duplicate) failed: %v", err)
		}
		if got := a.EdgeCount(); got != 1 {
			t.Errorf("EdgeCount = %d, want 1", got)
		}
	})

	t.Run("StreamRoundTrip", func(t *testing.T) {
		src := mustArchive(t, factory)
		if err := src.SaveSnapshot(sampleSnapshot()); err != nil {
			t.Fatalf("SaveSnapshot failed: %v", err)
		}

		var buf bytes.Buffer
		written, err := src.WriteTo(&buf)
		if err != nil {
			t.Fatalf("WriteTo failed: %v", err)
		}
		if written != int64(buf.Len()) {
			t.Errorf("WriteTo reported %d bytes, buffer holds %d", written, buf.Len())
		}

		dst, err := NewSQLiteArchive(":memory:")
		if err != nil {
			t.Fatalf("failed to create destination archive: %v", err)
		}
		t.Cleanup(func() { dst.Close() })

		read, err := dst.ReadFrom(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Fatalf("ReadFrom failed: %v", err)
		}
		if read != written {
			t.Errorf("ReadFrom consumed %d bytes, dump is %d", read, written)
		}
		if dst.NodeCount() != src.NodeCount() || dst.EdgeCount() != src.EdgeCount() {
			t.Errorf("restored archive has %d nodes, %d edges; want %d, %d",
				dst.NodeCount(), dst.EdgeCount(), src.NodeCount(), src.EdgeCount())
		}

		loaded := NewStore()
		if err := dst.LoadGraph(loaded); err != nil {
			t.Fatalf("LoadGraph failed: %v", err)
		}
		if got := loaded.Snapshot().Resolve("OLD:1781"); got != "DOID:1781" {
			t.Errorf("alias did not survive the stream round trip, Resolve = %q", got)
		}
	})
}

func mustArchive(t *testing.T, factory archiveFactory) *Archive {
	t.Helper()
	a, err := factory()
	if err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}
