package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
)

type RebuildResult struct {
	Users    int           `json:"users"`
	Failed   int           `json:"failed"`
	Workers  int           `json:"workers"`
	Duration time.Duration `json:"durationNs"`
}

type rebuildJob struct {
	userID string
}

// RebuildAll recomputes every active user's snapshot with a bounded pool of
// workers. It is the catch-up path for snapshots that missed a refresh.
func (s *FitnessService) RebuildAll(ctx context.Context, workerCount int) (RebuildResult, error) {
	start := time.Now()
	users, err := s.repo.ListUsers(ctx, repository.UserQuery{ActiveOnly: true})
	if err != nil {
		return RebuildResult{}, err
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(users) && len(users) > 0 {
		workerCount = len(users)
	}

	jobChan := make(chan rebuildJob, len(users))
	resultChan := make(chan error, len(users))
	var wg sync.WaitGroup

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go s.rebuildWorker(ctx, i, jobChan, resultChan, &wg)
	}

	for _, u := range users {
		jobChan <- rebuildJob{userID: u.ID}
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	result := RebuildResult{Workers: workerCount}
	for err := range resultChan {
		result.Users++
		if err != nil {
			result.Failed++
		}
	}
	result.Duration = time.Since(start)

	if s.cache != nil && result.Users > 0 {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.logger.Warn("cache_invalidate_failed", zap.Error(err))
		}
	}

	s.logger.Info("metrics_rebuilt",
		zap.Int("users", result.Users),
		zap.Int("failed", result.Failed),
		zap.Int("workers", workerCount),
		zap.Duration("duration", result.Duration),
	)
	return result, ctx.Err()
}

func (s *FitnessService) rebuildWorker(ctx context.Context, id int, jobs <-chan rebuildJob, results chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		if err := ctx.Err(); err != nil {
			results <- err
			continue
		}
		_, err := s.RefreshMetrics(ctx, job.userID)
		if err != nil {
			s.logger.Error("metrics_rebuild_failed",
				zap.Int("worker_id", id),
				zap.String("user_id", job.userID),
				zap.Error(err),
			)
		}
		results <- err
	}
}
