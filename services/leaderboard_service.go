package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
)

type LeaderboardQuery struct {
	Limit  int
	Role   models.Role
	School string
	Sort   string
}

type LeaderboardEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	DisplayName   string `json:"displayName"`
	School        string `json:"school"`
	FitnessScore  int    `json:"fitnessScore"`
	OverallScore  int    `json:"overallScore"`
	Streak        int    `json:"streak"`
	TotalWorkouts int    `json:"totalWorkouts"`
	TotalPoints   int    `json:"totalPoints"`
	Level         int    `json:"level"`
}

type LeaderboardResponse struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	TotalUsers  int                `json:"totalUsers"`
	Sort        string             `json:"sort"`
}

// LeaderboardService ranks users from their cached snapshots. It never reads
// workout history.
type LeaderboardService struct {
	repo         repository.Repository
	defaultLimit int
	maxLimit     int
}

func NewLeaderboardService(repo repository.Repository, defaultLimit, maxLimit int) *LeaderboardService {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &LeaderboardService{repo: repo, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

func (s *LeaderboardService) limit(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultLimit
	case requested > s.maxLimit:
		return s.maxLimit
	}
	return requested
}

func parseSort(sort string) (string, error) {
	switch sort {
	case "":
		return repository.SortFitness, nil
	case repository.SortFitness, repository.SortOverall, repository.SortPoints:
		return sort, nil
	}
	return "", errors.Wrapf(ErrValidation, "unknown sort %q", sort)
}

// Get returns the top users for q, ranked 1..N in result order.
func (s *LeaderboardService) Get(ctx context.Context, q LeaderboardQuery) (*LeaderboardResponse, error) {
	sortKey, err := parseSort(q.Sort)
	if err != nil {
		return nil, err
	}
	if q.Role != "" && !q.Role.Valid() {
		return nil, errors.Wrapf(ErrValidation, "unknown role %q", q.Role)
	}

	users, err := s.repo.ListUsers(ctx, repository.UserQuery{
		Role:       q.Role,
		School:     q.School,
		ActiveOnly: true,
		SortBy:     sortKey,
		Limit:      s.limit(q.Limit),
	})
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for i, u := range users {
		entries = append(entries, entryFor(i+1, u))
	}
	return &LeaderboardResponse{
		Leaderboard: entries,
		TotalUsers:  len(entries),
		Sort:        sortKey,
	}, nil
}

// RankOf is the user's 1-based position among everyone matching q. It reads
// the whole filtered list, so it is meant for dashboards, not hot paths.
func (s *LeaderboardService) RankOf(ctx context.Context, userID string, q LeaderboardQuery) (rank int, total int, err error) {
	sortKey, err := parseSort(q.Sort)
	if err != nil {
		return 0, 0, err
	}
	users, err := s.repo.ListUsers(ctx, repository.UserQuery{
		Role:       q.Role,
		School:     q.School,
		ActiveOnly: true,
		SortBy:     sortKey,
	})
	if err != nil {
		return 0, 0, err
	}
	for i, u := range users {
		if u.ID == userID {
			return i + 1, len(users), nil
		}
	}
	return 0, len(users), nil
}

func entryFor(rank int, u models.User) LeaderboardEntry {
	name := u.DisplayName
	if name == "" {
		name = u.Username
	}
	return LeaderboardEntry{
		Rank:          rank,
		UserID:        u.ID,
		Username:      u.Username,
		DisplayName:   name,
		School:        u.School,
		FitnessScore:  u.Metrics.FitnessScore,
		OverallScore:  u.Scores.Overall,
		Streak:        u.Metrics.Streak,
		TotalWorkouts: u.Metrics.TotalWorkouts,
		TotalPoints:   u.TotalPoints,
		Level:         u.Level(),
	}
}
