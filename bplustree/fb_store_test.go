package bplustree

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"CairnDB/atomicfile"
	"CairnDB/disk"
	"CairnDB/freeblock"
	"CairnDB/types"
)

const testBlockSize = 256

func openFBTree(t *testing.T, dir string, order int) *BPlusTree {
	t.Helper()
	f, err := disk.OpenOSFile(filepath.Join(dir, "tree.db"))
	if err != nil {
		t.Fatalf("open data file: %v", err)
	}
	af, err := atomicfile.Open(f, filepath.Join(dir, "tree.db.wal"))
	if err != nil {
		t.Fatalf("open atomic file: %v", err)
	}
	fb, err := freeblock.Open(af, testBlockSize)
	if err != nil {
		t.Fatalf("open free block file: %v", err)
	}
	store, err := NewFBStore(fb)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	tree, err := New(store, Options{Order: order})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := tree.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return tree
}

func TestFBStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 4)
	for k := 0; k < 50; k++ {
		if err := tree.Insert(types.Number(float64(k)), types.String(fmt.Sprintf("v%d", k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	checkInvariants(t, tree)
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tree = openFBTree(t, dir, 4)
	defer tree.store.Close()
	checkInvariants(t, tree)
	for k := 0; k < 50; k++ {
		val, found, err := tree.Search(types.Number(float64(k)))
		if err != nil {
			t.Fatalf("Search(%d): %v", k, err)
		}
		if !found {
			t.Fatalf("Search(%d): not found after reopen", k)
		}
		if want := fmt.Sprintf("v%d", k); val.AsString() != want {
			t.Fatalf("Search(%d) = %q, want %q", k, val.AsString(), want)
		}
	}
	got := collectKeys(t, tree)
	if len(got) != 50 {
		t.Fatalf("iterated %d keys after reopen, want 50", len(got))
	}
	for i, k := range got {
		if k != float64(i) {
			t.Fatalf("key at position %d = %v, want %d", i, k, i)
		}
	}
}

func TestFBStoreUncommittedWorkInvisible(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 4)
	if err := tree.Insert(types.String("durable"), types.Number(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.Insert(types.String("lost"), types.Number(2)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// close without flushing the second insert
	if err := tree.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tree = openFBTree(t, dir, 4)
	defer tree.store.Close()
	if _, found, err := tree.Search(types.String("durable")); err != nil || !found {
		t.Fatalf("committed key missing after reopen (found=%v, err=%v)", found, err)
	}
	if _, found, err := tree.Search(types.String("lost")); err != nil {
		t.Fatalf("Search: %v", err)
	} else if found {
		t.Fatal("uncommitted key visible after reopen")
	}
}

func TestFBStoreDeleteAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 3)
	for k := 0; k < 30; k++ {
		if err := tree.Insert(types.Number(float64(k)), types.Number(float64(k*k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	for k := 0; k < 30; k += 3 {
		if err := tree.Delete(types.Number(float64(k))); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
	}
	checkInvariants(t, tree)
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tree = openFBTree(t, dir, 3)
	defer tree.store.Close()
	checkInvariants(t, tree)
	for k := 0; k < 30; k++ {
		_, found, err := tree.Search(types.Number(float64(k)))
		if err != nil {
			t.Fatalf("Search(%d): %v", k, err)
		}
		if want := k%3 != 0; found != want {
			t.Fatalf("Search(%d) found=%v, want %v", k, found, want)
		}
	}
}

// Scans across commits must not trust stale sibling links: a committed left
// leaf still points at the pre-commit id of a sibling that later moved.
func TestFBStoreScanAfterReopenAndMutate(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 2)
	for k := 0; k < 20; k += 2 {
		if err := tree.Insert(types.Number(float64(k)), types.Number(float64(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// reopen, then move later leaves around with odd-key inserts
	tree = openFBTree(t, dir, 2)
	defer tree.store.Close()
	for k := 1; k < 20; k += 2 {
		if err := tree.Insert(types.Number(float64(k)), types.Number(float64(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	checkInvariants(t, tree)

	got := collectKeys(t, tree)
	if len(got) != 20 {
		t.Fatalf("iterated %d keys, want 20: %v", len(got), got)
	}
	for i, k := range got {
		if k != float64(i) {
			t.Fatalf("key at position %d = %v, want %d", i, k, i)
		}
	}
}

// Duplicates of one key span several leaves at order 2; after a commit and
// reopen the scan must still yield every one of them.
func TestFBStoreDuplicatesSurviveReopen(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 2)
	for i := 0; i < 6; i++ {
		if err := tree.Insert(types.Number(42), types.Number(float64(i))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := tree.store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	tree = openFBTree(t, dir, 2)
	defer tree.store.Close()
	checkInvariants(t, tree)

	for name, it := range map[string]*Iterator{
		"Entries":     tree.Entries(),
		"EntriesFrom": tree.EntriesFrom(types.Number(42)),
	} {
		count := 0
		for it.Next() {
			if it.Key().AsNumber() != 42 {
				t.Fatalf("%s: unexpected key %s", name, it.Key())
			}
			count++
		}
		if err := it.Err(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if count != 6 {
			t.Fatalf("%s yielded %d of 6 duplicate entries after reopen", name, count)
		}
	}
}

func TestFBStoreDuplicatesAcrossCommits(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 2)
	defer tree.store.Close()
	for i := 0; i < 9; i++ {
		if err := tree.Insert(types.Number(7), types.Number(float64(i))); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if i%3 == 2 {
			if err := tree.store.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
		}
	}
	checkInvariants(t, tree)

	count := 0
	it := tree.EntriesFrom(types.Number(7))
	for it.Next() {
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if count != 9 {
		t.Fatalf("yielded %d of 9 duplicates inserted across commits", count)
	}
}

// Deleting and committing returns leaf blocks to the free list; later
// inserts recycle those ids for unrelated leaves. A scan must yield exactly
// the surviving set, in order, with no leaf skipped.
func TestFBStoreScanAfterBlockRecycling(t *testing.T) {
	dir := t.TempDir()

	tree := openFBTree(t, dir, 2)
	defer tree.store.Close()
	for k := 0; k < 40; k++ {
		if err := tree.Insert(types.Number(float64(k)), types.Number(float64(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for k := 10; k < 30; k++ {
		if err := tree.Delete(types.Number(float64(k))); err != nil {
			t.Fatalf("Delete(%d): %v", k, err)
		}
	}
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	for k := 100; k < 120; k++ {
		if err := tree.Insert(types.Number(float64(k)), types.Number(float64(k))); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	if err := tree.store.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	checkInvariants(t, tree)

	var want []float64
	for k := 0; k < 10; k++ {
		want = append(want, float64(k))
	}
	for k := 30; k < 40; k++ {
		want = append(want, float64(k))
	}
	for k := 100; k < 120; k++ {
		want = append(want, float64(k))
	}
	got := collectKeys(t, tree)
	if len(got) != len(want) {
		t.Fatalf("scan yielded %d keys, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key at position %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFBStoreRejectsOversizeKey(t *testing.T) {
	dir := t.TempDir()
	tree := openFBTree(t, dir, 4)
	defer tree.store.Close()

	big := make([]byte, fbMaxKeySize+1)
	if err := tree.Insert(types.Bytes(big), types.Number(1)); !errors.Is(err, ErrKeySize) {
		t.Fatalf("expected ErrKeySize, got %v", err)
	}
}
