package project

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestWatchReloadsExternalWrite(t *testing.T) {
	s := newStore(t)
	if err := s.Register(Record{Path: "/src/a", Name: "a"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan []Record, 4)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(records []Record) { changes <- records })
	}()

	// Give the watcher time to register the directory
	time.Sleep(200 * time.Millisecond)

	// Our own write must not trigger a reload
	if err := s.Register(Record{Path: "/src/b", Name: "b"}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-changes:
		t.Fatalf("own write triggered reload: %v", got)
	case <-time.After(400 * time.Millisecond):
	}

	data, err := Encode([]Record{{Path: "/src/c", Name: "c"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.Path(), data, 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if names(got) != "c" {
			t.Errorf("reloaded names = %q, want c", names(got))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("external write not picked up")
	}
	if names(s.List()) != "c" {
		t.Errorf("store names = %q, want c", names(s.List()))
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
