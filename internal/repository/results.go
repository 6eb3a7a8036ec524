package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"nback-go/internal/metrics"
	"nback-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBStore keeps session summaries and their trial events in a relational
// database through gorm.
type DBStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewDBStore(db *gorm.DB, log *zap.Logger) *DBStore {
	return &DBStore{db: db, log: log}
}

func normalizeUser(user string) string {
	if user == "" {
		return DefaultUser
	}
	return user
}

// Save stores the summary and all trial events for a session in a single transaction.
func (s *DBStore) Save(ctx context.Context, user string, rec models.HistoryRecord, sess *models.Session) error {
	percents, err := encodePercents(rec.CategoryPercents)
	if err != nil {
		return err
	}
	result := models.SessionResult{
		UserName:         normalizeUser(user),
		ModeID:           int(rec.Mode),
		ShortName:        rec.ShortName,
		Back:             rec.Back,
		Percent:          rec.Percent,
		TicksPerTrial:    rec.TicksPerTrial,
		TotalTrials:      rec.TotalTrials,
		Manual:           rec.Manual,
		SessionNumber:    rec.SessionNumber,
		DurationSeconds:  rec.DurationSeconds,
		CategoryPercents: percents,
		PlayedAt:         rec.Timestamp,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&result).Error; err != nil {
			return fmt.Errorf("insert session result: %w", err)
		}
		events := trialEvents(result.ID, sess)
		if len(events) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(events, 200).Error; err != nil {
			return fmt.Errorf("insert trial events: %w", err)
		}
		s.log.Debug("Stored session", zap.Int("result_id", result.ID), zap.Int("events", len(events)))
		return nil
	})
}

// Results returns the user's stored session rows, oldest first.
func (s *DBStore) Results(ctx context.Context, user string) ([]models.SessionResult, error) {
	var rows []models.SessionResult
	err := s.db.WithContext(ctx).
		Where("user_name = ?", normalizeUser(user)).
		Order("played_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query session results: %w", err)
	}
	return rows, nil
}

func (s *DBStore) Load(ctx context.Context, user string) ([]models.HistoryRecord, error) {
	rows, err := s.Results(ctx, user)
	if err != nil {
		return nil, err
	}

	records := make([]models.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.HistoryRecord{
			Timestamp:       row.PlayedAt,
			ShortName:       row.ShortName,
			Percent:         row.Percent,
			Mode:            models.ModeID(row.ModeID),
			Back:            row.Back,
			TicksPerTrial:   row.TicksPerTrial,
			TotalTrials:     row.TotalTrials,
			Manual:          row.Manual,
			SessionNumber:   row.SessionNumber,
			DurationSeconds: row.DurationSeconds,
		}
		normalizeManual(&rec)
		if err := decodePercents(row.CategoryPercents, &rec.CategoryPercents); err != nil {
			s.log.Warn("Ignoring unreadable category percents", zap.Int("result_id", row.ID), zap.Error(err))
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *DBStore) Users(ctx context.Context) ([]string, error) {
	var users []string
	err := s.db.WithContext(ctx).Model(&models.SessionResult{}).
		Distinct().Order("user_name").Pluck("user_name", &users).Error
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return users, nil
}

// Events returns the stored trial events of one session result.
func (s *DBStore) Events(ctx context.Context, resultID int) ([]models.TrialEvent, error) {
	var events []models.TrialEvent
	err := s.db.WithContext(ctx).Where("result_id = ?", resultID).Order("trial, id").Find(&events).Error
	return events, err
}

func encodePercents(p [models.NumModalities]int) (json.RawMessage, error) {
	named := make(map[string]int, models.NumModalities)
	for m, v := range p {
		named[models.Modality(m).String()] = v
	}
	raw, err := json.Marshal(named)
	if err != nil {
		return nil, fmt.Errorf("encode category percents: %w", err)
	}
	return raw, nil
}

func decodePercents(raw json.RawMessage, dst *[models.NumModalities]int) error {
	if len(raw) == 0 {
		return nil
	}
	var named map[string]int
	if err := json.Unmarshal(raw, &named); err != nil {
		return err
	}
	for name, v := range named {
		m, err := models.ParseModality(name)
		if err != nil {
			return err
		}
		dst[m] = v
	}
	return nil
}

// trialEvents flattens a session into one row per trial and trained modality.
func trialEvents(resultID int, sess *models.Session) []models.TrialEvent {
	if sess == nil || sess.History == nil {
		return nil
	}
	var events []models.TrialEvent
	for _, rec := range sess.History.Records() {
		ref, hasRef := sess.Reference(rec.Trial, sess.Lag(rec.Trial))
		for _, m := range sess.Mode.Modalities {
			ev := models.TrialEvent{
				ResultID:   resultID,
				Trial:      rec.Trial,
				Modality:   m.String(),
				Pressed:    rec.Pressed[m],
				ReactionMS: rec.Reaction[m].Milliseconds(),
				Outcome:    metrics.Evaluate(sess, rec, m, true).String(),
			}
			if m == models.Arithmetic {
				ev.Value = rec.Number
				op, answer := rec.Operation.String(), rec.Answer
				ev.Operation, ev.Answer = &op, &answer
				if hasRef {
					n := ref.Number
					ev.BackValue = &n
				}
			} else {
				now, back := m.Streams()
				ev.Value = rec.Value(now)
				if hasRef {
					v := ref.Value(back)
					ev.BackValue = &v
				}
			}
			events = append(events, ev)
		}
	}
	return events
}
