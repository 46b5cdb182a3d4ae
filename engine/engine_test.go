package engine

import (
	"fmt"
	"path/filepath"
	"testing"

	"CairnDB/bplustree"
	"CairnDB/types"
)

func openTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := Open(filepath.Join(dir, "store.db"), Options{BlockSize: 256, Order: 4})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

func TestCommitThenReopen(t *testing.T) {
	dir := t.TempDir()

	e := openTestEngine(t, dir)
	for i := 0; i < 100; i++ {
		key := types.String(fmt.Sprintf("user:%03d", i))
		val := types.Object([]byte(fmt.Sprintf(`{"id":%d}`, i)))
		if err := e.Insert(key, val); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e = openTestEngine(t, dir)
	defer e.Close()
	for i := 0; i < 100; i++ {
		val, found, err := e.Search(types.String(fmt.Sprintf("user:%03d", i)))
		if err != nil {
			t.Fatalf("Search(%d): %v", i, err)
		}
		if !found {
			t.Fatalf("Search(%d): not found after reopen", i)
		}
		if want := fmt.Sprintf(`{"id":%d}`, i); string(val.AsObject()) != want {
			t.Fatalf("Search(%d) = %s, want %s", i, val.AsObject(), want)
		}
	}
}

func TestUncommittedChangesLostOnReopen(t *testing.T) {
	dir := t.TempDir()

	e := openTestEngine(t, dir)
	if err := e.Insert(types.String("kept"), types.Number(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := e.Insert(types.String("dropped"), types.Number(2)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := e.Delete(types.String("kept")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e = openTestEngine(t, dir)
	defer e.Close()
	if _, found, err := e.Search(types.String("kept")); err != nil || !found {
		t.Fatalf("committed key missing (found=%v, err=%v)", found, err)
	}
	if _, found, _ := e.Search(types.String("dropped")); found {
		t.Fatal("uncommitted insert survived reopen")
	}
}

func TestOrderedScanAcrossCommits(t *testing.T) {
	dir := t.TempDir()

	e := openTestEngine(t, dir)
	defer e.Close()
	for i := 50; i > 0; i-- {
		if err := e.Insert(types.Number(float64(i)), types.Number(float64(-i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
		if i%10 == 0 {
			if err := e.Commit(); err != nil {
				t.Fatalf("Commit: %v", err)
			}
		}
	}

	var got []float64
	it := e.Entries()
	for it.Next() {
		got = append(got, it.Key().AsNumber())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("iterated %d keys, want 50", len(got))
	}
	for i, k := range got {
		if k != float64(i+1) {
			t.Fatalf("key at position %d = %v, want %d", i, k, i+1)
		}
	}
}

func TestRangeQuery(t *testing.T) {
	dir := t.TempDir()

	e := openTestEngine(t, dir)
	defer e.Close()
	for i := 0; i < 20; i++ {
		if err := e.Insert(types.Number(float64(i)), types.Number(float64(i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}

	it := e.Range(types.Number(5), types.Number(10),
		bplustree.RangeOptions{InclusiveStart: true, InclusiveEnd: false})
	var got []float64
	for it.Next() {
		got = append(got, it.Key().AsNumber())
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []float64{5, 6, 7, 8, 9}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
}
