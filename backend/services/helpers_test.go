package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"learnplan/backend/config"
	"learnplan/backend/generator"
	"learnplan/backend/models"
	"learnplan/backend/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	db, err := utils.OpenDB(sqlite.Open(dsn))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, utils.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "testsecret",
		AccessTokenTTL:      30 * time.Minute,
		MaxUnfinishedPlans:  3,
		GenerationTimeout:   time.Second,
		TaskTimeout:         time.Second,
		FailedPlanRetention: 24 * time.Hour,
		Location:            time.UTC,
	}
}

// fixedClock returns a settable clock.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time          { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func createUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createReadyPlan(t *testing.T, db *gorm.DB, userID uint, content models.PlanContent) *models.LearningPlan {
	t.Helper()
	plan := &models.LearningPlan{
		UserID:       userID,
		Goal:         "Learn Go",
		DurationDays: 30,
		Difficulty:   models.DifficultyIntermediate,
		Status:       models.PlanReady,
	}
	plan.SetPlanContent(content)
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func reloadPlan(t *testing.T, db *gorm.DB, id uint) models.LearningPlan {
	t.Helper()
	var plan models.LearningPlan
	require.NoError(t, db.Unscoped().First(&plan, id).Error)
	return plan
}

func reloadUser(t *testing.T, db *gorm.DB, id uint) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, db.First(&user, id).Error)
	return user
}

func staticGenerator(content models.PlanContent) generator.PlanGenerator {
	return generator.Func(func(ctx context.Context, req generator.Request) (models.PlanContent, error) {
		return content, nil
	})
}

// recordingLocker wraps a Locker and counts acquisitions and concurrent holders per key.
type recordingLocker struct {
	inner Locker

	mu       sync.Mutex
	acquired map[string]int
	held     map[string]int
	maxHeld  map[string]int
}

func newRecordingLocker() *recordingLocker {
	return &recordingLocker{
		inner:    NewKeyedMutex(),
		acquired: make(map[string]int),
		held:     make(map[string]int),
		maxHeld:  make(map[string]int),
	}
}

func (r *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlock, err := r.inner.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.acquired[key]++
	r.held[key]++
	if r.held[key] > r.maxHeld[key] {
		r.maxHeld[key] = r.held[key]
	}
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.held[key]--
			r.mu.Unlock()
			unlock()
		})
	}, nil
}

func (r *recordingLocker) Acquired(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquired[key]
}

func (r *recordingLocker) MaxHeld(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxHeld[key]
}

// requireWaitsForLock holds key, checks that op does not finish while it is held and
// that it finishes once it is released.
func requireWaitsForLock(t *testing.T, locker Locker, key string, op func()) {
	t.Helper()
	unlock, err := locker.Lock(context.Background(), key)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		op()
	}()

	select {
	case <-done:
		unlock()
		t.Fatalf("operation finished while %s was held", key)
	case <-time.After(100 * time.Millisecond):
	}

	unlock()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("operation did not finish after %s was released", key)
	}
}
