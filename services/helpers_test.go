package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
)

// wednesday noon UTC
var testNow = time.Date(2024, time.March, 13, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func seedUser(t *testing.T, repo repository.Repository, username string, role models.Role, school string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Role:     role,
		School:   school,
		IsActive: true,
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

func seedRanked(t *testing.T, repo repository.Repository, username string, role models.Role, fitness, streak int) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Role:     role,
		IsActive: true,
		Metrics:  models.FitnessMetrics{FitnessScore: fitness, Streak: streak},
	}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	return u
}

type invalidatorSpy struct {
	mu    sync.Mutex
	users []string
	all   int
}

func (s *invalidatorSpy) InvalidateUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, userID)
	return nil
}

func (s *invalidatorSpy) InvalidateAll(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.all++
	return nil
}

func (s *invalidatorSpy) allCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all
}

func (s *invalidatorSpy) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.users...)
}

type boardSpy struct {
	mu     sync.Mutex
	points map[string]int
}

func (b *boardSpy) Add(_ context.Context, userID string, points int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.points == nil {
		b.points = make(map[string]int)
	}
	b.points[userID] += points
	return nil
}

func (b *boardSpy) total(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.points[userID]
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
