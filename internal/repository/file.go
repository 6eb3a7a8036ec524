package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"nback-go/internal/models"

	"go.uber.org/zap"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	fieldSeparator  = ","
	// timestamp, name, percent, mode, back, ticks, trials, manual, session,
	// sixteen modality percents, duration, reserved
	recordFields = 9 + models.NumModalities + 2
)

// FileStore keeps one append-only stats file per user, one line per session.
type FileStore struct {
	dir       string
	statsFile string
	log       *zap.Logger
	mu        sync.Mutex
}

func NewFileStore(dir, statsFile string, log *zap.Logger) *FileStore {
	if statsFile == "" {
		statsFile = "stats.txt"
	}
	return &FileStore{dir: dir, statsFile: statsFile, log: log}
}

// Path is the stats file of user. The default user owns the bare file name,
// others get a "<user>-" prefix.
func (s *FileStore) Path(user string) string {
	if user == "" || strings.EqualFold(user, DefaultUser) {
		return filepath.Join(s.dir, s.statsFile)
	}
	return filepath.Join(s.dir, user+"-"+s.statsFile)
}

func (s *FileStore) Load(ctx context.Context, user string) ([]models.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.Path(user))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open stats file: %w", err)
	}
	defer f.Close()
	return ReadRecords(f, s.log)
}

func (s *FileStore) Save(ctx context.Context, user string, rec models.HistoryRecord, _ *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	f, err := os.OpenFile(s.Path(user), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open stats file: %w", err)
	}
	if _, err := io.WriteString(f, FormatRecord(rec)+"\n"); err != nil {
		f.Close()
		return fmt.Errorf("append stats line: %w", err)
	}
	return f.Close()
}

// Users lists the default user plus every user with a prefixed stats file.
func (s *FileStore) Users(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read data directory: %w", err)
	}
	users := []string{DefaultUser}
	suffix := "-" + s.statsFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, suffix) {
			continue
		}
		if u := strings.TrimSuffix(name, suffix); u != "" && !strings.EqualFold(u, DefaultUser) {
			users = append(users, u)
		}
	}
	sort.Strings(users[1:])
	return users, nil
}

// FormatRecord renders rec as one stats line without the trailing newline.
func FormatRecord(rec models.HistoryRecord) string {
	manual := "0"
	if rec.Manual {
		manual = "1"
	}
	fields := make([]string, 0, recordFields)
	fields = append(fields,
		rec.Timestamp.Format(timestampLayout),
		rec.ShortName,
		strconv.Itoa(rec.Percent),
		strconv.Itoa(int(rec.Mode)),
		strconv.Itoa(rec.Back),
		strconv.Itoa(rec.TicksPerTrial),
		strconv.Itoa(rec.TotalTrials),
		manual,
		strconv.Itoa(rec.SessionNumber),
	)
	for _, m := range models.RecordOrder {
		fields = append(fields, strconv.Itoa(rec.CategoryPercents[m]))
	}
	fields = append(fields, strconv.FormatFloat(rec.DurationSeconds, 'f', -1, 64), "0")
	return strings.Join(fields, fieldSeparator)
}

// ReadRecords parses stats lines from r. Lines not starting with a digit are
// skipped silently, malformed lines are skipped with a warning, and missing
// trailing fields read as zero. Lines have no length limit.
func ReadRecords(r io.Reader, log *zap.Logger) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	br := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		line, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return records, fmt.Errorf("read stats file: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" && line[0] >= '0' && line[0] <= '9' {
			rec, err := ParseRecord(line)
			if err != nil {
				log.Warn("Skipping malformed stats line", zap.Int("line", lineNo), zap.Error(err))
			} else {
				records = append(records, rec)
			}
		}
		if readErr != nil {
			return records, nil
		}
	}
}

// ParseRecord parses one stats line. Tab-separated lines from older files
// are accepted as well.
func ParseRecord(line string) (models.HistoryRecord, error) {
	sep := fieldSeparator
	if strings.Contains(line, "\t") {
		sep = "\t"
	}
	fields := strings.Split(line, sep)
	if len(fields) < 2 {
		return models.HistoryRecord{}, fmt.Errorf("expected at least 2 fields, got %d", len(fields))
	}
	for len(fields) < recordFields {
		fields = append(fields, "0")
	}

	var rec models.HistoryRecord
	ts, err := time.ParseInLocation(timestampLayout, strings.TrimSpace(fields[0]), time.Local)
	if err != nil {
		return rec, fmt.Errorf("timestamp: %w", err)
	}
	rec.Timestamp = ts
	rec.ShortName = strings.TrimSpace(fields[1])

	ints := []*int{&rec.Percent, nil, &rec.Back, &rec.TicksPerTrial, &rec.TotalTrials, nil, &rec.SessionNumber}
	var mode, manual int
	ints[1], ints[5] = &mode, &manual
	for i, dst := range ints {
		if *dst, err = atoi(fields[2+i]); err != nil {
			return rec, fmt.Errorf("field %d: %w", 3+i, err)
		}
	}
	rec.Mode = models.ModeID(mode)
	rec.Manual = manual != 0
	normalizeManual(&rec)

	for i, m := range models.RecordOrder {
		if rec.CategoryPercents[m], err = atoi(fields[9+i]); err != nil {
			return rec, fmt.Errorf("%s percent: %w", m, err)
		}
	}
	// sessions recorded before durations existed keep zero
	if d, err := strconv.ParseFloat(strings.TrimSpace(fields[9+models.NumModalities]), 64); err == nil {
		rec.DurationSeconds = d
	}
	return rec, nil
}

// normalizeManual drops the session number of manual sessions so every
// backend hands replay the same records.
func normalizeManual(rec *models.HistoryRecord) {
	if rec.Manual {
		rec.SessionNumber = 0
	}
}

func atoi(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
