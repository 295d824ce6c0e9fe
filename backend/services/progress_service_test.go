package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type progressFixture struct {
	db     *gorm.DB
	svc    *ProgressService
	tasks  *TaskRunner
	clock  *fixedClock
	locker *recordingLocker
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	db := newTestDB(t)
	locker := newRecordingLocker()
	log := utils.NopLogger()
	clock := &fixedClock{t: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}

	streaks := NewStreakService(db, locker, time.UTC, log)
	streaks.now = clock.Now
	tasks := NewTaskRunner(log, time.Second)
	svc := NewProgressService(db, locker, tasks, streaks, log)
	svc.now = clock.Now
	return &progressFixture{db: db, svc: svc, tasks: tasks, clock: clock, locker: locker}
}

func countLogs(t *testing.T, db *gorm.DB, planID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.ActivityLog{}).Where("plan_id = ?", planID).Count(&n).Error)
	return n
}

func TestLogActivityCompletesPlan(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read", "quiz"}})
	ctx := context.Background()

	res, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
	require.NoError(t, err)
	assert.Equal(t, "day1#1", res.ActivityKey)
	assert.True(t, res.Credited)
	assert.Equal(t, 50.0, res.Progress)
	assert.False(t, res.Completed)
	assert.Nil(t, res.CompletedAt)

	f.clock.Advance(time.Hour)
	res, err = f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "day1#2", Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Progress)
	assert.True(t, res.Completed)
	require.NotNil(t, res.CompletedAt)

	stored := reloadPlan(t, f.db, plan.ID)
	assert.Equal(t, 100.0, stored.Progress)
	assert.True(t, stored.Completed)
	require.NotNil(t, stored.CompletedAt)
	assert.True(t, stored.CompletedAt.Equal(f.clock.Now()))
	assert.Equal(t, int64(2), countLogs(t, f.db, plan.ID))
}

func TestLogActivityRepeatedCompletionIsNotDoubleCounted(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read", "quiz"}, "day2": {"write"}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
		require.NoError(t, err)
		assert.Equal(t, i == 0, res.Credited)
		assert.InDelta(t, 100.0/3, res.Progress, 0.0001)
	}

	stored := reloadPlan(t, f.db, plan.ID)
	assert.InDelta(t, 100.0/3, stored.Progress, 0.0001)
	assert.False(t, stored.Completed)
	assert.Equal(t, int64(3), countLogs(t, f.db, plan.ID), "every event is logged")
}

func TestLogActivityCompletedAtIsSetOnce(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read"}})
	ctx := context.Background()

	_, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
	require.NoError(t, err)
	first := reloadPlan(t, f.db, plan.ID).CompletedAt
	require.NotNil(t, first)

	f.clock.Advance(48 * time.Hour)
	res, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	require.NotNil(t, res.CompletedAt)
	assert.True(t, res.CompletedAt.Equal(*first))

	again := reloadPlan(t, f.db, plan.ID).CompletedAt
	require.NotNil(t, again)
	assert.True(t, again.Equal(*first))
}

func TestLogActivityNotCompletedDoesNotCredit(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read", "quiz"}})
	ctx := context.Background()

	_, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
	require.NoError(t, err)

	res, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: false, Notes: "redo"})
	require.NoError(t, err)
	assert.False(t, res.Credited)
	assert.Equal(t, 50.0, res.Progress)

	var entry models.ActivityLog
	require.NoError(t, f.db.Where("plan_id = ?", plan.ID).Order("id DESC").First(&entry).Error)
	assert.False(t, entry.Completed)
	assert.Nil(t, entry.CompletedAt)
	assert.Equal(t, "redo", entry.Notes)

	f.tasks.Wait()
	assert.Equal(t, 1, reloadUser(t, f.db, user.ID).StreakDays)
}

func TestLogActivityRejectsForeignOrMissingPlan(t *testing.T) {
	f := newProgressFixture(t)
	owner := createUser(t, f.db, "alice")
	other := createUser(t, f.db, "bob")
	plan := createReadyPlan(t, f.db, owner.ID, models.PlanContent{"day1": {"read"}})
	ctx := context.Background()

	_, err := f.svc.LogActivity(ctx, other.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = f.svc.LogActivity(ctx, owner.ID, LogActivityInput{PlanID: 4242, Activity: "read", Completed: true})
	assert.ErrorIs(t, err, utils.ErrNotFound)

	assert.Zero(t, countLogs(t, f.db, plan.ID))
	assert.Equal(t, 0.0, reloadPlan(t, f.db, plan.ID).Progress)
}

func TestLogActivityValidation(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read"}, "day2": {"read"}})
	ctx := context.Background()

	tests := []struct {
		name  string
		input LogActivityInput
	}{
		{"missing plan id", LogActivityInput{Activity: "day1#1", Completed: true}},
		{"missing activity", LogActivityInput{PlanID: plan.ID, Completed: true}},
		{"unknown activity", LogActivityInput{PlanID: plan.ID, Activity: "sleep", Completed: true}},
		{"ambiguous text", LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true}},
		{"position out of range", LogActivityInput{PlanID: plan.ID, Activity: "day1#2", Completed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.LogActivity(ctx, user.ID, tt.input)
			assert.ErrorIs(t, err, utils.ErrValidation)
		})
	}
	assert.Zero(t, countLogs(t, f.db, plan.ID))

	res, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: "day2#1", Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Progress)
}

func TestLogActivityRequiresReadyPlan(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read"}})
	require.NoError(t, f.db.Model(plan).Update("status", models.PlanPending).Error)

	_, err := f.svc.LogActivity(context.Background(), user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestLogActivityUpdatesStreakInBackground(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"a", "b", "c"}})
	ctx := context.Background()

	for i, activity := range []string{"a", "b", "c"} {
		_, err := f.svc.LogActivity(ctx, user.ID, LogActivityInput{PlanID: plan.ID, Activity: activity, Completed: true})
		require.NoError(t, err)
		f.tasks.Wait()
		assert.Equal(t, i+1, reloadUser(t, f.db, user.ID).StreakDays)
		f.clock.Advance(24 * time.Hour)
	}

	stored := reloadUser(t, f.db, user.ID)
	require.NotNil(t, stored.LastActivity)
}

func TestLogActivityConcurrentCompletions(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")

	content := models.PlanContent{"week1": {}}
	for i := 0; i < 10; i++ {
		content["week1"] = append(content["week1"], fmt.Sprintf("task %d", i))
	}
	plan := createReadyPlan(t, f.db, user.ID, content)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		// every activity is completed twice
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := f.svc.LogActivity(context.Background(), user.ID, LogActivityInput{
					PlanID:    plan.ID,
					Activity:  models.ActivityKey("week1", n),
					Completed: true,
				})
				assert.NoError(t, err)
			}(i + 1)
		}
	}
	wg.Wait()
	f.tasks.Wait()

	stored := reloadPlan(t, f.db, plan.ID)
	assert.Equal(t, 100.0, stored.Progress)
	assert.True(t, stored.Completed)
	assert.Equal(t, int64(20), countLogs(t, f.db, plan.ID))

	assert.Equal(t, 20, f.locker.Acquired(planLockKey(plan.ID)))
	assert.Equal(t, 1, f.locker.MaxHeld(planLockKey(plan.ID)))
	assert.Equal(t, 20, f.locker.Acquired(streakLockKey(user.ID)))
	assert.Equal(t, 1, f.locker.MaxHeld(streakLockKey(user.ID)))

	var credited int64
	require.NoError(t, f.db.Model(&models.ActivityCompletion{}).Where("plan_id = ?", plan.ID).Count(&credited).Error)
	assert.Equal(t, int64(10), credited)
}

func TestLogActivityWaitsForPlanLock(t *testing.T) {
	f := newProgressFixture(t)
	user := createUser(t, f.db, "alice")
	plan := createReadyPlan(t, f.db, user.ID, models.PlanContent{"day1": {"read", "quiz"}})

	var res *ActivityResult
	requireWaitsForLock(t, f.locker, planLockKey(plan.ID), func() {
		var err error
		res, err = f.svc.LogActivity(context.Background(), user.ID, LogActivityInput{PlanID: plan.ID, Activity: "read", Completed: true})
		assert.NoError(t, err)
	})
	f.tasks.Wait()

	require.NotNil(t, res)
	assert.Equal(t, 50.0, res.Progress)
	assert.Equal(t, int64(1), countLogs(t, f.db, plan.ID))
}

func TestComputeProgress(t *testing.T) {
	assert.Equal(t, 0.0, ComputeProgress(0, 0))
	assert.Equal(t, 0.0, ComputeProgress(3, 0))
	assert.Equal(t, 0.0, ComputeProgress(0, 4))
	assert.Equal(t, 25.0, ComputeProgress(1, 4))
	assert.Equal(t, 100.0, ComputeProgress(4, 4))
	assert.Equal(t, 100.0, ComputeProgress(7, 4))
}
