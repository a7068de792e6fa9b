package main

import (
	"context"
	"log"
	"time"

	"grammargame/internal/pkg"
	"grammargame/internal/services"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const jobLockExpiry = 10 * time.Minute

type LeaderboardJob struct {
	serviceLeaderboard *services.ServiceLeaderboard
	rs                 *redsync.Redsync
}

func NewLeaderboardJob(serviceLeaderboard *services.ServiceLeaderboard, rs *redsync.Redsync) *LeaderboardJob {
	return &LeaderboardJob{
		serviceLeaderboard: serviceLeaderboard,
		rs:                 rs,
	}
}

func (j *LeaderboardJob) Start(ctx context.Context, cronRunner *cron.Cron, spec string) error {
	_, err := cronRunner.AddFunc(spec, j.runScheduledTask)
	if err != nil {
		return err
	}
	log.Println("Leaderboard Cronjob start at:", time.Now().Format(time.DateTime), "cron:", spec)

	return withJobLock(ctx, j.rs, "leaderboard_warm_up", j.initLeaderboard)
}

func (j *LeaderboardJob) runScheduledTask() {
	ctx := context.Background()
	err := withJobLock(ctx, j.rs, "leaderboard_weekly_reset", func(ctx context.Context) error {
		log.Println("Start cleaning weekly leaderboard ...")
		if err := j.serviceLeaderboard.ResetLeaderboard(ctx, services.LEADERBOARD_OVERALL_WEEKLY); err != nil {
			return err
		}
		log.Println("Weekly leaderboard cleaned")
		return nil
	})
	if err != nil {
		log.Println(err)
	}
}

// initLeaderboard rebuilds both boards from the store so a fresh redis
// starts with correct standings.
func (j *LeaderboardJob) initLeaderboard(ctx context.Context) error {
	now := time.Now()
	startTimeOfWeek := pkg.StartOfWeek(now)
	log.Println("Start loading completed sessions, week starts at:", startTimeOfWeek)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := j.serviceLeaderboard.WarmUpLeaderboard(gctx, services.LEADERBOARD_OVERALL, time.Unix(0, 0).UTC(), now)
		return err
	})
	g.Go(func() error {
		_, err := j.serviceLeaderboard.WarmUpLeaderboard(gctx, services.LEADERBOARD_OVERALL_WEEKLY, startTimeOfWeek, now)
		return err
	})
	return g.Wait()
}

// withJobLock runs fn only if no other replica holds the lock for job.
func withJobLock(ctx context.Context, rs *redsync.Redsync, job string, fn func(ctx context.Context) error) error {
	mutex := rs.NewMutex(services.LockKeyCronJob(job), redsync.WithExpiry(jobLockExpiry), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		log.Printf("job %s skipped, lock held elsewhere: %v\n", job, err)
		return nil
	}
	defer func() {
		//nolint:errcheck
		mutex.UnlockContext(context.Background())
	}()

	return fn(ctx)
}
