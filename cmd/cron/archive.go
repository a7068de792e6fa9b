package main

import (
	"context"
	"log"
	"time"

	"grammargame/internal/services"

	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
)

type ArchiveJob struct {
	serviceArchive *services.ServiceArchive
	rs             *redsync.Redsync
}

func NewArchiveJob(serviceArchive *services.ServiceArchive, rs *redsync.Redsync) *ArchiveJob {
	return &ArchiveJob{
		serviceArchive: serviceArchive,
		rs:             rs,
	}
}

func (j *ArchiveJob) Start(cronRunner *cron.Cron, spec string) error {
	_, err := cronRunner.AddFunc(spec, j.runScheduledTask)
	if err != nil {
		return err
	}
	log.Println("Archive Cronjob start at:", time.Now().Format(time.DateTime), "cron:", spec)
	return nil
}

func (j *ArchiveJob) runScheduledTask() {
	ctx := context.Background()
	yesterday := time.Now().UTC().Add(-24 * time.Hour)

	err := withJobLock(ctx, j.rs, "archive", func(ctx context.Context) error {
		_, _, err := j.serviceArchive.ArchiveDay(ctx, yesterday)
		return err
	})
	if err != nil {
		log.Println("archive", yesterday.Format(time.DateOnly), err)
	}
}
