package store_test

import (
	"testing"

	"github.com/ndlib/parcel/store"
	"github.com/ndlib/parcel/store/storetest"
)

func TestMemoryStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	// keep the total small so the test finishes quickly
	storetest.Stress(t, store.NewMemory(), 10*1000*1000)
}

func TestFileSystemStress(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}
	storetest.Stress(t, store.NewFileSystem(t.TempDir()), 10*1000*1000)
}
