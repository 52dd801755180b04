// Command tracker is a terminal client for habit tracking. It keeps its state
// in a local JSON file and syncs with the API when VIVIFY_API_URL and
// VIVIFY_TOKEN are set.
//
//	tracker status
//	tracker add <name> <category> [points]
//	tracker done <habit-id>
//	tracker recalc
package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/IsaacStallan/vivify-wellness-platform-sub000/metrics"
	"github.com/IsaacStallan/vivify-wellness-platform-sub000/tracker"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("vivify")
	v.AutomaticEnv()
	home, _ := os.UserHomeDir()
	v.SetDefault("state", filepath.Join(home, ".vivify", "tracker.json"))
	v.SetDefault("timezone", "Local")
	v.SetDefault("local_only", false)

	logger := zap.NewNop()
	if v.GetBool("debug") {
		logger, _ = zap.NewDevelopment()
	}

	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		color.Red("bad timezone: %v", err)
		os.Exit(1)
	}

	var remote tracker.RemoteSource
	var broadcaster tracker.Broadcaster
	if url := v.GetString("api_url"); url != "" {
		client := tracker.NewAPIClient(url, v.GetString("token"), nil)
		remote, broadcaster = client, client
	}

	precedence := tracker.PreferServer
	if v.GetBool("local_only") {
		precedence = tracker.LocalOnly
	}

	t := tracker.New(tracker.NewFileStore(v.GetString("state")), remote, broadcaster, logger, tracker.Options{
		Precedence: precedence,
		Location:   loc,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := t.Init(ctx); err != nil {
		color.Red("init: %v", err)
		os.Exit(1)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"status"}
	}
	if err := run(ctx, t, args); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, t *tracker.Tracker, args []string) error {
	switch args[0] {
	case "status":
		printStatus(t.Snapshot())
	case "add":
		if len(args) < 3 {
			return usage()
		}
		points := 0
		if len(args) > 3 {
			p, err := strconv.Atoi(args[3])
			if err != nil {
				return err
			}
			points = p
		}
		h, err := t.AddHabit(ctx, args[1], args[2], points)
		if err != nil {
			return err
		}
		color.Green("added %s (%s, %d pts) id=%s", h.Name, h.Category.DisplayName(), h.Points, h.ID)
	case "done":
		if len(args) < 2 {
			return usage()
		}
		res, err := t.CompleteHabit(ctx, args[1])
		if err != nil {
			return err
		}
		color.Green("%s done, streak %d", res.Habit.Name, res.Habit.Streak)
		color.Cyan("points %d  level %d  overall %d", res.TotalPoints, res.Level, res.Scores.Overall)
	case "recalc":
		src, err := t.Recalculate(ctx)
		if err != nil {
			return err
		}
		if tracker.IsServer(src) {
			color.Yellow("scores come from the server, nothing to recalculate")
		}
		printStatus(t.Snapshot())
	default:
		return usage()
	}
	return nil
}

func usage() error {
	return errors.New("usage: tracker [status | add <name> <category> [points] | done <habit-id> | recalc]")
}

func printStatus(s tracker.Snapshot) {
	source := "local"
	if tracker.IsServer(s.Source) {
		source = "server"
	}
	title := color.New(color.FgGreen, color.Bold)
	title.Printf("Level %d, %d points, scores from %s\n", s.Level, s.TotalPoints, source)
	for _, c := range metrics.Categories {
		color.Cyan("  %-22s %3d", c.DisplayName(), s.Scores.Get(c))
	}
	color.Cyan("  %-22s %3d", "Overall", s.Scores.Overall)

	done := make(map[string]bool, len(s.CompletedToday))
	for _, id := range s.CompletedToday {
		done[id] = true
	}
	for _, h := range s.Habits {
		mark := "[ ]"
		if done[h.ID] {
			mark = "[x]"
		}
		color.White("%s %s  streak %d  id=%s", mark, h.Name, h.Streak, h.ID)
	}
}
