package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"
	"time"

	"grammargame/internal/config"
	"grammargame/internal/interfaces"
	"grammargame/internal/pkg"

	"github.com/samber/do"
)

const archivePageSize = 500

type ServiceArchive struct {
	container *do.Injector
	store     interfaces.GameSessionRepository
	storage   interfaces.ObjectStorage
	cfg       *config.Config
}

func NewServiceArchive(container *do.Injector) (*ServiceArchive, error) {
	store, err := do.Invoke[interfaces.Store](container)
	if err != nil {
		return nil, err
	}

	storage, err := do.Invoke[interfaces.ObjectStorage](container)
	if err != nil {
		return nil, err
	}

	cfg, err := do.Invoke[*config.Config](container)
	if err != nil {
		return nil, err
	}

	return &ServiceArchive{container, store, storage, cfg}, nil
}

// ArchiveDay uploads every session completed during the UTC day containing
// day as one JSON line each. Days without sessions upload nothing.
func (service *ServiceArchive) ArchiveDay(ctx context.Context, day time.Time) (string, int, error) {
	from := pkg.StartOfDay(day)
	to := from.Add(24 * time.Hour)

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)

	count := 0
	for offset := 0; ; offset += archivePageSize {
		opCtx, cancel := context.WithTimeout(ctx, service.cfg.StoreOpTimeout)
		sessions, err := service.store.ListCompletedGameSessions(opCtx, from, to, archivePageSize, offset)
		cancel()
		if err != nil {
			return "", count, err
		}

		for _, session := range sessions {
			if err := encoder.Encode(session); err != nil {
				return "", count, err
			}
		}

		count += len(sessions)
		if len(sessions) < archivePageSize {
			break
		}
	}

	if count == 0 {
		return "", 0, nil
	}

	key := ArchiveKey(service.cfg.Archive.Prefix, from)
	if err := service.storage.PutObject(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return "", count, err
	}

	log.Printf("archived %d sessions to %s\n", count, key)
	return key, count, nil
}

func ArchiveKey(prefix string, day time.Time) string {
	return path.Join(prefix, fmt.Sprintf("%s.jsonl", day.UTC().Format(time.DateOnly)))
}
