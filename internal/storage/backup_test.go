package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestBackup_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	bm := NewBackupManager(dir, nil)

	data := []byte(`{"favorites":["bitcoin"],"version":"1.0"}`)
	path, err := bm.Save(data)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("backup written outside %s: %s", dir, path)
	}

	loaded, err := bm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if string(loaded) != string(data) {
		t.Errorf("Expected %s, got %s", data, loaded)
	}
}

func TestBackup_LoadLatest_MultipleBackups(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bm := NewBackupManager(t.TempDir(), clock)

	for _, body := range []string{`"first"`, `"second"`, `"third"`} {
		if _, err := bm.Save([]byte(body)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		clock.Advance(time.Second)
	}

	loaded, err := bm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if string(loaded) != `"third"` {
		t.Errorf("Expected latest backup, got %s", loaded)
	}
}

func TestBackup_SameInstantDoesNotOverwrite(t *testing.T) {
	bm := NewBackupManager(t.TempDir(), clockwork.NewFakeClock())

	p1, err := bm.Save([]byte(`1`))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	p2, err := bm.Save([]byte(`2`))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("second save overwrote %s", p1)
	}

	backups, _ := bm.List()
	if len(backups) != 2 {
		t.Errorf("Expected 2 backups, got %d", len(backups))
	}
}

func TestBackup_LoadLatest_NoBackups(t *testing.T) {
	bm := NewBackupManager(filepath.Join(t.TempDir(), "missing"), nil)

	loaded, err := bm.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded != nil {
		t.Errorf("Expected nil for empty dir, got %s", loaded)
	}
}

func TestBackup_Cleanup(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClock()
	bm := NewBackupManager(dir, clock)

	for i := 1; i <= 5; i++ {
		if _, err := bm.Save([]byte{byte('0' + i)}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		clock.Advance(time.Minute)
	}
	// Unrelated files are left alone.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := bm.Cleanup(2); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("Expected 2 backups and notes.txt after cleanup, got %d entries", len(entries))
	}

	loaded, _ := bm.LoadLatest()
	if string(loaded) != "5" {
		t.Errorf("Expected newest backup to remain, got %s", loaded)
	}
}
