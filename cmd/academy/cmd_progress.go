package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/academy/internal/config"
	"github.com/felixgeelhaar/academy/internal/queue"
	"github.com/felixgeelhaar/academy/internal/storage/sqlite"
	"github.com/felixgeelhaar/academy/internal/view"
)

// cmdDashboard shows the learner's stats
func cmdDashboard() error {
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var d view.Dashboard
	if err := c.get("/v1/dashboard", &d); err != nil {
		return fmt.Errorf("get dashboard: %w", err)
	}

	fmt.Println(renderDashboard(d, time.Now()))
	return nil
}

func renderDashboard(d view.Dashboard, now time.Time) string {
	stats := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("XP total", strconv.Itoa(d.TotalXP)),
		statCard("Nível", strconv.Itoa(d.Level)),
		statCard("Sequência", fmt.Sprintf("%d dias", d.StreakDays)),
		statCard("Lições", fmt.Sprintf("%d/%d", d.CompletedLessons, d.TotalLessons)),
		statCard("Badges", fmt.Sprintf("%d/%d", len(d.Badges), d.TotalBadges)),
	)

	level := fmt.Sprintf("Nível %d %s %d/%d XP",
		d.Level,
		renderProgressBar(float64(d.XPIntoLevel)/float64(max(d.XPPerLevel, 1)), 20),
		d.XPIntoLevel, d.XPPerLevel)
	overall := fmt.Sprintf("Progresso %s %.0f%%", renderProgressBar(d.OverallProgress, 20), d.OverallProgress*100)
	weekly := fmt.Sprintf("Esta semana: %d lições, +%d XP", d.WeeklyLessons, d.WeeklyXP)

	lines := []string{
		titleStyle.Render("📊 Dashboard"),
		stats,
		level,
		overall,
		mutedStyle.Render(weekly),
		"",
		headerStyle.Render("Badges"),
	}
	if len(d.Badges) == 0 {
		lines = append(lines, mutedStyle.Render(view.NoBadgesText))
	}
	for _, b := range d.Badges {
		lines = append(lines, b.Icon+" "+b.Title)
	}

	lines = append(lines, "", headerStyle.Render("Atividade recente"))
	if len(d.RecentActivity) == 0 {
		lines = append(lines, mutedStyle.Render("Nenhuma atividade ainda"))
	}
	for _, a := range d.RecentActivity {
		lines = append(lines, fmt.Sprintf("%s %s %s", a.Icon, a.Text, mutedStyle.Render(view.Ago(a.At, now))))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// cmdAchievements lists every badge with its earned state
func cmdAchievements() error {
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var resp struct {
		Achievements []view.AchievementCard `json:"achievements"`
	}
	if err := c.get("/v1/achievements", &resp); err != nil {
		return fmt.Errorf("get achievements: %w", err)
	}

	fmt.Println(titleStyle.Render("🏆 Conquistas"))
	for _, a := range resp.Achievements {
		line := fmt.Sprintf("%s %-22s +%d XP  %s", a.Icon, a.Title, a.XPReward, a.Description)
		if a.Earned {
			fmt.Println(successStyle.Render("✅ " + line))
		} else {
			fmt.Println(mutedStyle.Render("   " + line))
		}
	}
	return nil
}

// cmdActivity prints the recorded activity log, or streams it from
// RabbitMQ with "follow"
func cmdActivity(args []string) error {
	if len(args) > 0 && args[0] == "follow" {
		return cmdActivityFollow()
	}

	c, err := daemonClient()
	if err != nil {
		return err
	}

	path := "/v1/activity"
	if len(args) > 0 {
		path += "?type=" + args[0]
	}

	var resp struct {
		Events []sqlite.ActivityRecord `json:"events"`
	}
	if err := c.get(path, &resp); err != nil {
		return fmt.Errorf("get activity: %w", err)
	}

	if len(resp.Events) == 0 {
		fmt.Println("No activity recorded yet.")
		return nil
	}
	for _, e := range resp.Events {
		fmt.Printf("%s  %-22s %s\n",
			mutedStyle.Render(e.OccurredAt.Local().Format("2006-01-02 15:04")),
			e.EventType, e.Subject)
	}
	return nil
}

func cmdActivityFollow() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Events.AMQPURL == "" {
		return fmt.Errorf("events.amqp_url is not configured")
	}

	conn, err := queue.NewConnection(cfg.Events.AMQPURL, cfg.Events.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := queue.NewConsumer(conn, func(ctx context.Context, msg *queue.ActivityMessage) error {
		fmt.Printf("%s  %-22s %-14s %s\n",
			mutedStyle.Render(msg.OccurredAt.Local().Format("15:04:05")),
			msg.Type, msg.Subject, mutedStyle.Render(msg.Source))
		return nil
	}, queue.DefaultConsumerConfig())

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	defer consumer.Stop()

	fmt.Println(mutedStyle.Render("Following " + conn.Queue() + " (Ctrl+C to stop)"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
