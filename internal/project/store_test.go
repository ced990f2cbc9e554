package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ffpull/ffpull/internal/gittest"
)

// acceptAll admits every candidate without touching disk.
var acceptAll = ValidatorFunc(func(Record) error { return nil })

type recordingSink struct {
	warns  []string
	errors []string
}

func (s *recordingSink) Warnf(format string, args ...any) {
	s.warns = append(s.warns, format)
}

func (s *recordingSink) Errorf(format string, args ...any) {
	s.errors = append(s.errors, format)
}

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := Open(path, append([]Option{WithValidator(acceptAll)}, opts...)...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func names(records []Record) string {
	var out []string
	for _, r := range records {
		out = append(out, r.Name)
	}
	return strings.Join(out, ",")
}

func TestOpenMissingFile(t *testing.T) {
	s := newStore(t)
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if _, err := os.Stat(s.Path()); !os.IsNotExist(err) {
		t.Errorf("Open created the store file")
	}
}

func TestOpenEmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") succeeded")
	}
}

func TestOpenUnparsableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	s, err := Open(path, WithSink(sink))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if len(sink.warns) != 1 {
		t.Errorf("got %d warnings, want 1", len(sink.warns))
	}
}

func TestOpenLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	legacy := `[
    {
        "path": "/src/alpha",
        "name": "alpha",
        "notes": "first"
    },
    {
        "path": "/src/beta",
        "name": "beta",
        "notes": ""
    }
]`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	got := s.List()
	if len(got) != 2 {
		t.Fatalf("Len() = %d, want 2", len(got))
	}
	want := Record{Path: "/src/alpha", Name: "alpha", Notes: "first"}
	if got[0] != want {
		t.Errorf("record 0 = %+v, want %+v", got[0], want)
	}
	if got[1].Branch != "" {
		t.Errorf("record 1 branch = %q, want empty", got[1].Branch)
	}
}

func TestRegisterEmptyField(t *testing.T) {
	called := false
	s := newStore(t, WithValidator(ValidatorFunc(func(Record) error {
		called = true
		return nil
	})))

	tests := []struct {
		name   string
		record Record
	}{
		{"empty path", Record{Name: "x", Notes: "n"}},
		{"empty name", Record{Path: "/tmp/x"}},
		{"both empty", Record{Notes: "only notes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Register(tt.record)
			if !errors.Is(err, ErrEmptyField) {
				t.Fatalf("Register() = %v, want ErrEmptyField", err)
			}
			if !IsRegistrationError(err) {
				t.Errorf("error is not a *RegistrationError")
			}
		})
	}
	if called {
		t.Error("validator ran for a candidate with empty fields")
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestRegisterBlankName(t *testing.T) {
	s := newStore(t)
	if err := s.Register(Record{Path: "/tmp/x", Name: "  "}); err != nil {
		t.Fatalf("Register(blank name) = %v, want nil", err)
	}
	if got, _ := s.Get(0); got.Name != "  " {
		t.Errorf("Name = %q, want two spaces", got.Name)
	}
}

func TestRegisterPersistsInOrder(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"alpha", "beta", "alpha"} {
		if err := s.Register(Record{Path: "/src/" + name, Name: name}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	reopened, err := Open(s.Path())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := names(reopened.List()); got != "alpha,beta,alpha" {
		t.Errorf("reloaded names = %q", got)
	}
}

func TestRemove(t *testing.T) {
	s := newStore(t)
	for _, name := range []string{"r0", "r1", "r2", "r3"} {
		if err := s.Register(Record{Path: "/src/" + name, Name: name}); err != nil {
			t.Fatal(err)
		}
	}

	if n := s.Remove(1, 3, 3, 17, -1); n != 2 {
		t.Errorf("Remove() = %d, want 2", n)
	}
	if got := names(s.List()); got != "r0,r2" {
		t.Errorf("names after Remove = %q, want r0,r2", got)
	}

	reopened, err := Open(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if got := names(reopened.List()); got != "r0,r2" {
		t.Errorf("reloaded names = %q, want r0,r2", got)
	}

	if n := s.Remove(); n != 0 {
		t.Errorf("Remove() with no indices = %d", n)
	}
}

func TestUpdate(t *testing.T) {
	s := newStore(t)
	if err := s.Register(Record{Path: "/src/a", Name: "a", Notes: "old"}); err != nil {
		t.Fatal(err)
	}

	notes, branch := "new", "main"
	if err := s.Update(0, Patch{Notes: &notes, Branch: &branch}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(0)
	if got.Notes != "new" || got.Branch != "main" || got.Name != "a" {
		t.Errorf("record after Update = %+v", got)
	}

	empty := ""
	if err := s.Update(0, Patch{Name: &empty}); !errors.Is(err, ErrEmptyField) {
		t.Errorf("Update(empty name) = %v, want ErrEmptyField", err)
	}
	if err := s.Update(5, Patch{Notes: &notes}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("Update(5) = %v, want ErrIndexOutOfRange", err)
	}
}

func TestConcurrentPersistWritesLatest(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("p%02d", i)
			if err := s.Register(Record{Path: "/src/" + name, Name: name}); err != nil {
				t.Errorf("Register(%s): %v", name, err)
			}
		}()
	}
	wg.Wait()

	want, err := Encode(s.List())
	if err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("file holds a stale snapshot:\n%s\nwant:\n%s", got, want)
	}
}

func TestPersistFailureKeepsMemory(t *testing.T) {
	dir := t.TempDir()
	// A directory where the store file should be makes the rename fail.
	path := filepath.Join(dir, DefaultFileName)
	if err := os.MkdirAll(filepath.Join(path, "occupied"), 0755); err != nil {
		t.Fatal(err)
	}

	sink := &recordingSink{}
	s, err := Open(path, WithValidator(acceptAll), WithSink(sink))
	if err != nil {
		t.Fatal(err)
	}
	sink.warns = nil

	if err := s.Register(Record{Path: "/src/a", Name: "a"}); err != nil {
		t.Fatalf("Register() = %v, want nil despite write failure", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	if len(sink.errors) != 1 {
		t.Errorf("sink got %d errors, want 1", len(sink.errors))
	}

	err = s.Persist()
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("Persist() = %v, want ErrWriteFailed", err)
	}
	var perr *PersistenceError
	if !errors.As(err, &perr) || perr.Path != path {
		t.Errorf("Persist() error = %#v", err)
	}
}

func TestEncodeOmitsEmptyBranch(t *testing.T) {
	data, err := Encode([]Record{{Path: "/p", Name: "n"}})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "branch") {
		t.Errorf("Encode wrote branch for an unset value:\n%s", data)
	}
	if !strings.Contains(string(data), `"notes": ""`) {
		t.Errorf("Encode dropped empty notes:\n%s", data)
	}

	data, err = Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Errorf("Encode(nil) = %q", data)
	}
}

func TestRepoValidator(t *testing.T) {
	gittest.RequireGit(t)

	origin := gittest.NewOrigin(t)
	clone := gittest.Clone(t, origin)
	noRemote := gittest.Init(t)
	gittest.Commit(t, noRemote, "a.txt", "a", "init")

	tests := []struct {
		name   string
		record Record
		want   error
	}{
		{"clone with origin", Record{Path: clone, Name: "ok"}, nil},
		{"missing path", Record{Path: filepath.Join(t.TempDir(), "nope"), Name: "gone"}, ErrNotARepository},
		{"plain directory", Record{Path: t.TempDir(), Name: "plain"}, ErrNotARepository},
		{"no origin", Record{Path: noRemote, Name: "local"}, ErrNoOriginRemote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			s, err := Open(path)
			if err != nil {
				t.Fatal(err)
			}

			err = s.Register(tt.record)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Register() = %v", err)
				}
				if s.Len() != 1 {
					t.Errorf("Len() = %d, want 1", s.Len())
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() = %v, want %v", err, tt.want)
			}
			if s.Len() != 0 {
				t.Errorf("rejected record was stored")
			}
			if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
				t.Errorf("rejected registration wrote the store file")
			}
		})
	}
}

func TestRegistrationErrorMessages(t *testing.T) {
	r := Record{Path: "/src/x", Name: "x"}
	tests := []struct {
		kind error
		want string
	}{
		{ErrEmptyField, "project path and name must not be empty"},
		{ErrNotARepository, "project path /src/x does not exist or is not a valid git repository"},
		{ErrNoOriginRemote, "project x is not a valid git repository or has no 'origin' remote"},
	}
	for _, tt := range tests {
		err := &RegistrationError{Kind: tt.kind, Record: r}
		if err.Error() != tt.want {
			t.Errorf("Error() = %q, want %q", err.Error(), tt.want)
		}
	}
}
