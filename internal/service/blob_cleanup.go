package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/pkg/jobs"
)

// BlobCleanupJob is the job type for deleting unreferenced blobs.
const BlobCleanupJob = "blob.delete"

type blobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// NewBlobCleanupHandler returns a queue handler that removes job.Key from the store.
func NewBlobCleanupHandler(store blobDeleter, timeout time.Duration, metrics *MetricsService, logger *zap.Logger) jobs.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		if job.Type != BlobCleanupJob || job.Key == "" {
			logger.Warn("ignoring unexpected cleanup job", zap.String("job_id", job.ID), zap.String("type", job.Type))
			return nil
		}
		deleteCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		err := store.Delete(deleteCtx, job.Key)
		metrics.ObserveBlob("delete", err, time.Since(start))
		if err != nil {
			return err
		}
		logger.Debug("blob removed", zap.String("key", job.Key))
		return nil
	}
}
