package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-app/gatehouse/internal/idp"
	jobmetrics "github.com/gatehouse-app/gatehouse/internal/jobs"
	"github.com/gatehouse-app/gatehouse/internal/users"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Directory lists users at the identity provider.
type Directory interface {
	ListUsers(ctx context.Context) ([]idp.User, error)
}

// UserSyncJob copies the provider's user directory into the local
// mirror table.
type UserSyncJob struct {
	Directory Directory
	Mirror    users.Repository
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewUserSyncJob initialises the directory sync handler.
func NewUserSyncJob(directory Directory, mirror users.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *UserSyncJob {
	return &UserSyncJob{
		Directory: directory,
		Mirror:    mirror,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one directory sync run.
func (j *UserSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("user sync: handler not configured")
	}
	var payload UserSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Trigger == "" {
		payload.Trigger = "scheduled"
	}

	tracker := j.metrics().Track(TaskUserSync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("trigger", payload.Trigger))

	if j.Directory == nil || j.Mirror == nil {
		resultErr = errors.New("user sync: directory or mirror not configured")
		logger.Warn("skipping directory sync", slog.Any("error", resultErr))
		return asynq.SkipRetry
	}

	start := j.now()
	logger.Info("starting directory sync")

	listing, err := j.Directory.ListUsers(ctx)
	if err != nil {
		resultErr = err
		logger.Error("list directory users", slog.Any("error", err))
		return resultErr
	}

	entries := make([]users.User, 0, len(listing))
	for _, u := range listing {
		entries = append(entries, mirrorEntry(u))
	}
	if err := j.Mirror.UpsertBatch(ctx, entries); err != nil {
		resultErr = err
		logger.Error("write user mirror", slog.Any("error", err))
		return resultErr
	}

	j.metrics().SetDirectorySize(len(entries))
	logger.Info("completed directory sync",
		slog.Int("users", len(entries)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func mirrorEntry(u idp.User) users.User {
	entry := users.User{
		ExternalID:    u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		Invited:       u.Invited,
		Roles:         u.Roles,
	}
	if u.LastLogin != "" {
		if ts, err := time.Parse(time.RFC3339, u.LastLogin); err == nil {
			entry.LastLogin = &ts
		}
	}
	return entry
}

func (j *UserSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskUserSync))
	}
	return slog.Default().With(slog.String("job", TaskUserSync))
}

func (j *UserSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *UserSyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
