package repository

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nback-go/internal/metrics"
	"nback-go/internal/models"

	"gopkg.in/yaml.v3"
)

// ArchivedTrial is the per-trial part of an archive entry.
type ArchivedTrial struct {
	Trial     int               `yaml:"trial" json:"trial"`
	Values    map[string]int    `yaml:"values" json:"values"`
	Number    int               `yaml:"number,omitempty" json:"number,omitempty"`
	Operation string            `yaml:"operation,omitempty" json:"operation,omitempty"`
	Answer    string            `yaml:"answer,omitempty" json:"answer,omitempty"`
	Pressed   []string          `yaml:"pressed,omitempty" json:"pressed,omitempty"`
	Reactions map[string]int64  `yaml:"reaction_ms,omitempty" json:"reaction_ms,omitempty"`
	Injected  map[string]string `yaml:"injected,omitempty" json:"injected,omitempty"`
	Outcomes  map[string]string `yaml:"outcomes,omitempty" json:"outcomes,omitempty"`
}

// ArchivedSession is one YAML document of a user's session archive.
type ArchivedSession struct {
	ID        string          `yaml:"id" json:"id"`
	Timestamp time.Time       `yaml:"timestamp" json:"timestamp"`
	Summary   string          `yaml:"summary" json:"summary"`
	Mode      int             `yaml:"mode" json:"mode"`
	Back      int             `yaml:"n" json:"n"`
	Manual    bool            `yaml:"manual" json:"manual"`
	TrialSecs float64         `yaml:"trial_duration" json:"trial_duration"`
	Trials    []ArchivedTrial `yaml:"trials" json:"trials"`
}

// Archive appends a full per-trial dump of every completed session to
// "<user>-sessions.yaml", one YAML document per session.
type Archive struct {
	dir string
	mu  sync.Mutex
}

func NewArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

func (a *Archive) Path(user string) string {
	return filepath.Join(a.dir, normalizeUser(user)+"-sessions.yaml")
}

// Append writes one session document.
func (a *Archive) Append(user, id string, rec models.HistoryRecord, sess *models.Session) error {
	entry := ArchivedSession{
		ID:        id,
		Timestamp: rec.Timestamp,
		Summary:   FormatRecord(rec),
		Mode:      int(rec.Mode),
		Back:      rec.Back,
		Manual:    rec.Manual,
		TrialSecs: float64(rec.TicksPerTrial) / 10,
	}
	if sess != nil {
		entry.Trials = archivedTrials(sess)
	}
	out, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode archive entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	f, err := os.OpenFile(a.Path(user), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if _, err := f.Write(append([]byte("---\n"), out...)); err != nil {
		f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	return f.Close()
}

// Read decodes every session document in the user's archive.
func (a *Archive) Read(user string) ([]ArchivedSession, error) {
	f, err := os.Open(a.Path(user))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var sessions []ArchivedSession
	dec := yaml.NewDecoder(f)
	for {
		var s ArchivedSession
		if err := dec.Decode(&s); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return sessions, fmt.Errorf("decode archive: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func archivedTrials(sess *models.Session) []ArchivedTrial {
	records := sess.History.Records()
	trials := make([]ArchivedTrial, 0, len(records))
	for _, rec := range records {
		t := ArchivedTrial{
			Trial:     rec.Trial,
			Values:    make(map[string]int, models.NumStreams),
			Reactions: map[string]int64{},
			Injected:  map[string]string{},
			Outcomes:  map[string]string{},
		}
		for s := models.Stream(0); int(s) < models.NumStreams; s++ {
			if v := rec.Value(s); v != 0 {
				t.Values[s.String()] = v
			}
		}
		if sess.Mode.Has(models.Arithmetic) {
			t.Number = rec.Number
			t.Operation = rec.Operation.String()
			t.Answer = rec.Answer
		}
		for _, m := range sess.Mode.Modalities {
			name := m.String()
			if rec.Pressed[m] {
				t.Pressed = append(t.Pressed, name)
				t.Reactions[name] = rec.Reaction[m].Milliseconds()
			}
			if rec.Injected[m] != models.InjectNone {
				t.Injected[name] = rec.Injected[m].String()
			}
			if o := metrics.Evaluate(sess, rec, m, true); o != metrics.Unknown {
				t.Outcomes[name] = o.String()
			}
		}
		trials = append(trials, t)
	}
	return trials
}
