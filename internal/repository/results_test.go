package repository

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"nback-go/internal/config"
	"nback-go/internal/database"
	"nback-go/internal/models"
	"nback-go/internal/sequence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func configFor(backend, dir string) config.StorageConfig {
	return config.StorageConfig{Backend: backend, DataDir: dir, StatsFile: "stats.txt"}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "nback.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// playedSession generates a short dual session without responses.
func playedSession(t *testing.T) *models.Session {
	t.Helper()
	mode, err := models.LookupMode(models.DualMode)
	require.NoError(t, err)
	sess := &models.Session{Mode: mode, Back: 2, TotalTrials: 12, History: models.NewSessionHistory(12)}
	seq := sequence.NewSequencer(config.Default(), rand.New(rand.NewSource(3)), zap.NewNop())
	for trial := 1; trial <= sess.TotalTrials; trial++ {
		rec, err := seq.Generate(sess, trial)
		require.NoError(t, err)
		sess.History.Append(rec)
	}
	return sess
}

func TestDBStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	store := NewDBStore(db, zap.NewNop())

	sess := playedSession(t)
	require.NoError(t, store.Save(ctx, "bob", sampleRecord(1, 55), sess))
	require.NoError(t, store.Save(ctx, "bob", sampleRecord(2, 81), nil))
	require.NoError(t, store.Save(ctx, "", sampleRecord(1, 30), nil))

	records, err := store.Load(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 55, records[0].Percent)
	assert.Equal(t, 60, records[0].CategoryPercents[models.Position1])
	assert.Equal(t, 50, records[0].CategoryPercents[models.Audio])
	assert.Equal(t, 81, records[1].Percent)
	assert.True(t, records[0].Timestamp.Equal(sampleRecord(1, 55).Timestamp))

	users, err := store.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", DefaultUser}, users)

	var first models.SessionResult
	require.NoError(t, db.Where("user_name = ?", "bob").Order("id").First(&first).Error)
	events, err := store.Events(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, events, sess.TotalTrials*len(sess.Mode.Modalities))
	for _, ev := range events {
		if ev.Trial <= sess.Back {
			assert.Nil(t, ev.BackValue, "no reference during warm-up")
			assert.Equal(t, "unknown", ev.Outcome)
		} else {
			assert.NotNil(t, ev.BackValue)
		}
	}
}

func TestBackendsAgreeOnManualSessions(t *testing.T) {
	ctx := context.Background()
	manual := sampleRecord(4, 70)
	manual.Manual = true

	db := NewDBStore(openTestDB(t), zap.NewNop())
	file := NewFileStore(t.TempDir(), "stats.txt", zap.NewNop())
	for _, store := range []HistoryStore{db, file} {
		require.NoError(t, store.Save(ctx, "bob", sampleRecord(3, 55), nil))
		require.NoError(t, store.Save(ctx, "bob", manual, nil))
	}

	fromDB, err := db.Load(ctx, "bob")
	require.NoError(t, err)
	fromFile, err := file.Load(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, fromDB, 2)
	require.Len(t, fromFile, 2)
	for i := range fromDB {
		assert.Equal(t, fromFile[i].SessionNumber, fromDB[i].SessionNumber, "record %d", i)
		assert.Equal(t, fromFile[i].Manual, fromDB[i].Manual, "record %d", i)
	}
	assert.Equal(t, 3, fromDB[0].SessionNumber)
	assert.Zero(t, fromDB[1].SessionNumber)
}

func TestNewHistoryStoreWithDatabase(t *testing.T) {
	store, err := NewHistoryStore(configFor("db", ""), openTestDB(t), zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &DBStore{}, store)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepository(openTestDB(t))

	u, err := users.Select(ctx, "carol", "")
	require.NoError(t, err)
	assert.False(t, u.HasPIN())
	assert.False(t, u.LastSeen.IsZero())

	require.NoError(t, users.SetPIN(ctx, "carol", "4321"))
	_, err = users.Select(ctx, "carol", "0000")
	assert.ErrorIs(t, err, ErrWrongPIN)
	u, err = users.Select(ctx, "carol", "4321")
	require.NoError(t, err)
	assert.True(t, u.HasPIN())

	require.NoError(t, users.SetPIN(ctx, "carol", ""))
	_, err = users.Select(ctx, "carol", "anything")
	assert.NoError(t, err)

	assert.ErrorIs(t, users.SetPIN(ctx, "nobody", "1"), gorm.ErrRecordNotFound)

	list, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "carol", list[0].Name)
}
