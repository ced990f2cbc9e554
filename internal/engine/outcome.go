package engine

import (
	"fmt"

	"github.com/ffpull/ffpull/internal/logbuf"
	"github.com/ffpull/ffpull/internal/project"
	"github.com/ffpull/ffpull/internal/vcs"
)

// Kind classifies the result of syncing one project.
type Kind int

const (
	// UpToDate means the local tip already contains the fetched commit.
	UpToDate Kind = iota

	// FastForwarded means the branch was moved to the fetched commit and
	// the working tree checked out.
	FastForwarded

	// Conflict means the histories diverged; nothing was changed.
	Conflict

	// FetchFailed means the fetch from origin failed. Reason holds the git error.
	FetchFailed

	// RemoteMissing means the repository has no origin remote.
	RemoteMissing

	// RepositoryOpenFailed means the path no longer opens as a repository.
	RepositoryOpenFailed

	// CorruptFetchHead means FETCH_HEAD was missing or not a commit after fetching.
	CorruptFetchHead

	// FastForwardFailed means a fast-forward step failed and the ref and
	// HEAD were restored. Reason holds the failing step.
	FastForwardFailed
)

var kindNames = map[Kind]string{
	UpToDate:             "up-to-date",
	FastForwarded:        "fast-forwarded",
	Conflict:             "conflict",
	FetchFailed:          "fetch-failed",
	RemoteMissing:        "remote-missing",
	RepositoryOpenFailed: "open-failed",
	CorruptFetchHead:     "corrupt-fetch-head",
	FastForwardFailed:    "fast-forward-failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown outcome kind %q", text)
	}
	*k = parsed
	return nil
}

// Outcome is the result of syncing one project.
type Outcome struct {
	Kind Kind `json:"kind"`

	// Reason carries the error text for FetchFailed and FastForwardFailed.
	Reason string `json:"reason,omitempty"`

	// OldHead and NewHead are the local tip before and after, when known.
	OldHead string `json:"old_head,omitempty"`
	NewHead string `json:"new_head,omitempty"`
}

// OK reports whether the project ended in sync with origin.
func (o Outcome) OK() bool {
	return o.Kind == UpToDate || o.Kind == FastForwarded
}

// Changed reports whether the working tree was modified.
func (o Outcome) Changed() bool {
	return o.Kind == FastForwarded
}

func (o Outcome) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("%s: %s", o.Kind, o.Reason)
	}
	return o.Kind.String()
}

// Message renders the log line for this outcome without its severity tag.
func (o Outcome) Message(r project.Record, remote, branch string) (logbuf.Severity, string) {
	switch o.Kind {
	case UpToDate:
		return logbuf.SeverityInfo, fmt.Sprintf("%s is already up to date", r.Name)
	case FastForwarded:
		if o.OldHead == "" {
			return logbuf.SeverityInfo, fmt.Sprintf("%s updated to %s", r.Name, vcs.ShortHash(o.NewHead))
		}
		return logbuf.SeverityInfo, fmt.Sprintf("%s updated %s..%s", r.Name, vcs.ShortHash(o.OldHead), vcs.ShortHash(o.NewHead))
	case Conflict:
		return logbuf.SeverityError, fmt.Sprintf("%s has diverged from %s/%s, manual merge required", r.Name, remote, branch)
	case FetchFailed:
		return logbuf.SeverityError, fmt.Sprintf("%s: fetch failed: %s", r.Name, o.Reason)
	case RemoteMissing:
		return logbuf.SeverityError, fmt.Sprintf("cannot find remote '%s': %s", remote, r.Name)
	case RepositoryOpenFailed:
		return logbuf.SeverityError, fmt.Sprintf("cannot open repository: %s", r.Path)
	case CorruptFetchHead:
		return logbuf.SeverityError, fmt.Sprintf("%s: FETCH_HEAD is missing or corrupt", r.Name)
	case FastForwardFailed:
		return logbuf.SeverityError, fmt.Sprintf("%s: fast-forward failed: %s", r.Name, o.Reason)
	}
	return logbuf.SeverityWarn, fmt.Sprintf("%s: %s", r.Name, o)
}

// Progress is emitted once per completed project.
type Progress struct {
	// Index is the 1-based count of completed projects.
	Index int `json:"index"`

	Total   int            `json:"total"`
	Record  project.Record `json:"record"`
	Outcome Outcome        `json:"outcome"`

	// Fraction is Index/Total.
	Fraction float64 `json:"fraction"`
}

// Summary tallies a batch.
type Summary struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	UpToDate  int `json:"up_to_date"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

// Add counts p.
func (s *Summary) Add(p Progress) {
	s.Total = p.Total
	s.Completed++
	switch {
	case p.Outcome.Kind == UpToDate:
		s.UpToDate++
	case p.Outcome.Kind == FastForwarded:
		s.Updated++
	default:
		s.Failed++
	}
}

// Canceled reports whether the batch stopped before every project ran.
func (s Summary) Canceled() bool {
	return s.Completed < s.Total
}
