package services

import (
	"context"
	"math"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/models"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/repository"
)

const dashboardTopN = 10

type StudentDashboard struct {
	User        models.UserResponse `json:"user"`
	Rank        int                 `json:"rank"`
	TotalRanked int                 `json:"totalRanked"`
	Habits      []models.Habit      `json:"habits"`
}

type ClassAverages struct {
	Students     int     `json:"students"`
	FitnessScore float64 `json:"fitnessScore"`
	OverallScore float64 `json:"overallScore"`
	Streak       float64 `json:"streak"`
	TotalPoints  float64 `json:"totalPoints"`
}

type TeacherDashboard struct {
	User        models.UserResponse `json:"user"`
	School      string              `json:"school"`
	Averages    ClassAverages       `json:"averages"`
	Leaderboard []LeaderboardEntry  `json:"leaderboard"`
}

type AdminDashboard struct {
	User        models.UserResponse    `json:"user"`
	Counts      map[models.Role]int64  `json:"counts"`
	TotalUsers  int64                  `json:"totalUsers"`
	Leaderboard []LeaderboardEntry     `json:"leaderboard"`
}

type DashboardService struct {
	repo  repository.Repository
	board *LeaderboardService
}

func NewDashboardService(repo repository.Repository, board *LeaderboardService) *DashboardService {
	return &DashboardService{repo: repo, board: board}
}

// For returns the dashboard matching the user's role.
func (s *DashboardService) For(ctx context.Context, userID string) (interface{}, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch u.Role {
	case models.RoleTeacher:
		return s.teacher(ctx, u)
	case models.RoleAdmin:
		return s.admin(ctx, u)
	}
	return s.student(ctx, u)
}

func (s *DashboardService) student(ctx context.Context, u *models.User) (*StudentDashboard, error) {
	rank, total, err := s.board.RankOf(ctx, u.ID, LeaderboardQuery{Role: models.RoleStudent, School: u.School})
	if err != nil {
		return nil, err
	}
	habits, err := s.repo.ListHabits(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &StudentDashboard{
		User:        u.Response(),
		Rank:        rank,
		TotalRanked: total,
		Habits:      habits,
	}, nil
}

func (s *DashboardService) teacher(ctx context.Context, u *models.User) (*TeacherDashboard, error) {
	students, err := s.repo.ListUsers(ctx, repository.UserQuery{
		Role:       models.RoleStudent,
		School:     u.School,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	top, err := s.board.Get(ctx, LeaderboardQuery{
		Role:   models.RoleStudent,
		School: u.School,
		Limit:  dashboardTopN,
	})
	if err != nil {
		return nil, err
	}
	return &TeacherDashboard{
		User:        u.Response(),
		School:      u.School,
		Averages:    classAverages(students),
		Leaderboard: top.Leaderboard,
	}, nil
}

func (s *DashboardService) admin(ctx context.Context, u *models.User) (*AdminDashboard, error) {
	d := &AdminDashboard{
		User:   u.Response(),
		Counts: make(map[models.Role]int64, 3),
	}
	for _, role := range []models.Role{models.RoleStudent, models.RoleTeacher, models.RoleAdmin} {
		n, err := s.repo.CountUsers(ctx, repository.UserQuery{Role: role})
		if err != nil {
			return nil, err
		}
		d.Counts[role] = n
		d.TotalUsers += n
	}
	top, err := s.board.Get(ctx, LeaderboardQuery{Limit: dashboardTopN})
	if err != nil {
		return nil, err
	}
	d.Leaderboard = top.Leaderboard
	return d, nil
}

func classAverages(users []models.User) ClassAverages {
	avg := ClassAverages{Students: len(users)}
	if len(users) == 0 {
		return avg
	}
	for _, u := range users {
		avg.FitnessScore += float64(u.Metrics.FitnessScore)
		avg.OverallScore += float64(u.Scores.Overall)
		avg.Streak += float64(u.Metrics.Streak)
		avg.TotalPoints += float64(u.TotalPoints)
	}
	n := float64(len(users))
	avg.FitnessScore = round1(avg.FitnessScore / n)
	avg.OverallScore = round1(avg.OverallScore / n)
	avg.Streak = round1(avg.Streak / n)
	avg.TotalPoints = round1(avg.TotalPoints / n)
	return avg
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
