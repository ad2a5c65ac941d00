// Package view builds the render data for the academy screens from the
// catalog, the progress record and the latest results.
package view

import (
	"fmt"
	"math"
	"time"

	"github.com/felixgeelhaar/academy/internal/curriculum"
	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/engine"
	"github.com/felixgeelhaar/academy/internal/grader"
)

// LessonStatus is the display state of a lesson in the curriculum
type LessonStatus string

const (
	StatusLocked    LessonStatus = "locked"
	StatusCompleted LessonStatus = "completed"
	StatusCurrent   LessonStatus = "current"
	StatusAvailable LessonStatus = "available"
)

// Icon returns the marker shown next to a lesson
func (s LessonStatus) Icon() string {
	switch s {
	case StatusCompleted:
		return "✅"
	case StatusCurrent:
		return "▶️"
	case StatusAvailable:
		return "⭕"
	default:
		return "🔒"
	}
}

// NoBadgesText is shown when no achievement has been earned
const NoBadgesText = "Nenhuma badge conquistada ainda"

// TestsPlaceholder is shown in the tests tab before the first run
const TestsPlaceholder = `Clique em "Testar" para validar sua solução...`

// weekWindow is the trailing window of the weekly dashboard counters
const weekWindow = 7 * 24 * time.Hour

// recentActivityLimit caps the dashboard activity feed
const recentActivityLimit = 5

// ModuleCard is one module tile of the curriculum view
type ModuleCard struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Difficulty      string       `json:"difficulty"`
	EstimatedHours  int          `json:"estimated_hours"`
	LessonCount     int          `json:"lesson_count"`
	CompletedCount  int          `json:"completed_count"`
	Locked          bool         `json:"locked"`
	Completed       bool         `json:"completed"`
	ProgressPercent int          `json:"progress_percent"`
	Lessons         []LessonItem `json:"lessons"`
}

// ProgressLabel renders "n/m concluídas"
func (c ModuleCard) ProgressLabel() string {
	return fmt.Sprintf("%d/%d concluídas", c.CompletedCount, c.LessonCount)
}

// LessonItem is one row of a module card
type LessonItem struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	XPPoints    int          `json:"xp_points"`
	Status      LessonStatus `json:"status"`
	Icon        string       `json:"icon"`
}

// Selectable reports whether the lesson can be opened
func (i LessonItem) Selectable() bool {
	return i.Status != StatusLocked
}

// Curriculum builds the module cards. Lock state is recomputed from p on
// every call.
func Curriculum(reg *curriculum.Registry, p *domain.UserProgress) []ModuleCard {
	completed := p.Completed()
	cards := make([]ModuleCard, 0, len(reg.Modules()))
	for _, m := range reg.Modules() {
		done := m.CompletedCount(completed)
		card := ModuleCard{
			ID:              m.ID,
			Title:           m.Title,
			Description:     m.Description,
			Difficulty:      m.Difficulty,
			EstimatedHours:  m.EstimatedHours,
			LessonCount:     len(m.Lessons),
			CompletedCount:  done,
			Locked:          reg.IsModuleLocked(m, completed),
			Completed:       len(m.Lessons) > 0 && done == len(m.Lessons),
			ProgressPercent: percent(done, len(m.Lessons)),
			Lessons:         make([]LessonItem, 0, len(m.Lessons)),
		}
		for _, l := range m.Lessons {
			status := lessonStatus(reg, l, p, completed, card.Locked)
			card.Lessons = append(card.Lessons, LessonItem{
				ID:          l.ID,
				Title:       l.Title,
				Description: l.Description,
				XPPoints:    l.XPPoints,
				Status:      status,
				Icon:        status.Icon(),
			})
		}
		cards = append(cards, card)
	}
	return cards
}

func lessonStatus(reg *curriculum.Registry, l *domain.Lesson, p *domain.UserProgress, completed domain.LessonSet, moduleLocked bool) LessonStatus {
	locked := moduleLocked || reg.IsLessonLocked(l, completed)
	switch {
	case completed.Has(l.ID):
		return StatusCompleted
	case locked:
		return StatusLocked
	case p.CurrentLesson == l.ID:
		return StatusCurrent
	default:
		return StatusAvailable
	}
}

// AchievementCard is one tile of the achievements view
type AchievementCard struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	XPReward    int    `json:"xp_reward"`
	Earned      bool   `json:"earned"`
}

// Achievements builds the achievement cards in catalog order
func Achievements(reg *curriculum.Registry, p *domain.UserProgress) []AchievementCard {
	cards := make([]AchievementCard, 0, len(reg.Achievements()))
	for _, a := range reg.Achievements() {
		cards = append(cards, AchievementCard{
			ID:          a.ID,
			Icon:        a.Icon,
			Title:       a.Title,
			Description: a.Description,
			XPReward:    a.XPReward,
			Earned:      p.HasBadge(a.ID),
		})
	}
	return cards
}

// Badge is an earned achievement as shown on the dashboard
type Badge struct {
	ID    string `json:"id"`
	Icon  string `json:"icon"`
	Title string `json:"title"`
}

// Activity is one entry of the dashboard activity feed
type Activity struct {
	Icon string    `json:"icon"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
	Ago  string    `json:"ago"`
}

// Dashboard is the statistics view
type Dashboard struct {
	TotalXP          int        `json:"total_xp"`
	Level            int        `json:"level"`
	XPIntoLevel      int        `json:"xp_into_level"`
	XPPerLevel       int        `json:"xp_per_level"`
	StreakDays       int        `json:"streak_days"`
	CompletedLessons int        `json:"completed_lessons"`
	CompletedModules int        `json:"completed_modules"`
	TotalLessons     int        `json:"total_lessons"`
	TotalBadges      int        `json:"total_badges"`
	WeeklyLessons    int        `json:"weekly_lessons"`
	WeeklyXP         int        `json:"weekly_xp"`
	OverallProgress  float64    `json:"overall_progress"`
	Badges           []Badge    `json:"badges"`
	RecentActivity   []Activity `json:"recent_activity"`
}

// BuildDashboard aggregates p against the catalog at now
func BuildDashboard(reg *curriculum.Registry, p *domain.UserProgress, now time.Time) Dashboard {
	completed := p.Completed()
	d := Dashboard{
		TotalXP:          p.TotalXP,
		Level:            p.CurrentLevel,
		XPIntoLevel:      p.TotalXP % domain.XPPerLevel,
		XPPerLevel:       domain.XPPerLevel,
		StreakDays:       p.StreakDays,
		CompletedLessons: len(p.CompletedLessons),
		CompletedModules: reg.CompletedModules(completed),
		TotalLessons:     reg.LessonCount(),
		TotalBadges:      len(p.BadgesEarned),
		Badges:           []Badge{},
		RecentActivity:   []Activity{},
	}

	if d.TotalLessons > 0 {
		d.OverallProgress = float64(d.CompletedLessons) / float64(d.TotalLessons)
	}

	since := now.Add(-weekWindow)
	weekly := make(map[string]struct{})
	for _, entry := range p.CompletionLog {
		if entry.At.Before(since) {
			continue
		}
		weekly[entry.LessonID] = struct{}{}
		d.WeeklyXP += entry.XP
	}
	d.WeeklyLessons = len(weekly)

	for _, a := range reg.Achievements() {
		if p.HasBadge(a.ID) {
			d.Badges = append(d.Badges, Badge{ID: a.ID, Icon: a.Icon, Title: a.Title})
		}
	}

	for i := len(p.CompletionLog) - 1; i >= 0 && len(d.RecentActivity) < recentActivityLimit; i-- {
		entry := p.CompletionLog[i]
		title := entry.LessonID
		if l, ok := reg.FindLesson(entry.LessonID); ok {
			title = l.Title
		}
		text := fmt.Sprintf("Completou lição %q", title)
		if entry.XP > 0 {
			text += fmt.Sprintf(" (+%d XP)", entry.XP)
		}
		d.RecentActivity = append(d.RecentActivity, Activity{
			Icon: "📚",
			Text: text,
			At:   entry.At,
			Ago:  Ago(entry.At, now),
		})
	}

	return d
}

// Ago renders the distance from at to now in Portuguese
func Ago(at, now time.Time) string {
	d := now.Sub(at)
	switch {
	case d < time.Minute:
		return "agora"
	case d < time.Hour:
		return fmt.Sprintf("%d min atrás", int(d.Minutes()))
	case d < 2*time.Hour:
		return "1 hora atrás"
	case d < 24*time.Hour:
		return fmt.Sprintf("%d horas atrás", int(d.Hours()))
	case d < 48*time.Hour:
		return "1 dia atrás"
	default:
		return fmt.Sprintf("%d dias atrás", int(d.Hours()/24))
	}
}

// PracticeHeader is the lesson header of the practice view
type PracticeHeader struct {
	LessonID   string `json:"lesson_id"`
	Title      string `json:"title"`
	Difficulty string `json:"difficulty"`
	Time       string `json:"time"`
	XP         string `json:"xp"`
	Theory     string `json:"theory"`
	HintCount  int    `json:"hint_count"`
}

// Practice builds the header for l
func Practice(l *domain.Lesson) PracticeHeader {
	return PracticeHeader{
		LessonID:   l.ID,
		Title:      l.Title,
		Difficulty: fmt.Sprintf("⭐ %d/5", l.Difficulty),
		Time:       fmt.Sprintf("⏱️ %dmin", l.EstimatedMinutes),
		XP:         fmt.Sprintf("⚡ +%d XP", l.XPPoints),
		Theory:     l.Theory,
		HintCount:  len(l.Hints),
	}
}

// TestRow is one test case line of the tests tab
type TestRow struct {
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
	Status      string `json:"status"`
	Feedback    string `json:"feedback"`
}

// TestPanel is the tests tab
type TestPanel struct {
	Ran     bool      `json:"ran"`
	Summary string    `json:"summary"`
	Score   int       `json:"score"`
	Rows    []TestRow `json:"rows"`
}

// Tests builds the tests tab from the latest report, or the placeholder
// when no tests have run
func Tests(r *grader.Report) TestPanel {
	if r == nil {
		return TestPanel{Summary: TestsPlaceholder, Rows: []TestRow{}}
	}
	panel := TestPanel{
		Ran:     true,
		Summary: fmt.Sprintf("Aprovado: %d/%d | Pontos: %d/%d", r.Passed, r.Total, r.EarnedPoints, r.TotalPoints),
		Score:   r.Score(),
		Rows:    make([]TestRow, 0, len(r.Results)),
	}
	for _, res := range r.Results {
		mark := "❌"
		if res.Passed {
			mark = "✅"
		}
		panel.Rows = append(panel.Rows, TestRow{
			Description: res.Description,
			Passed:      res.Passed,
			Status:      fmt.Sprintf("%s %d pontos", mark, res.Points),
			Feedback:    res.Feedback,
		})
	}
	return panel
}

// CompletionModal is the dialog shown when a lesson is completed
type CompletionModal struct {
	LessonID           string  `json:"lesson_id"`
	EarnedXP           int     `json:"earned_xp"`
	Score              string  `json:"score"`
	NewBadges          []Badge `json:"new_badges"`
	LeveledUp          bool    `json:"leveled_up"`
	NewLevel           int     `json:"new_level"`
	HasNext            bool    `json:"has_next"`
	CurriculumComplete bool    `json:"curriculum_complete"`
	Repeat             bool    `json:"repeat"`
}

// Modal builds the completion dialog from an engine outcome
func Modal(out engine.Outcome) CompletionModal {
	m := CompletionModal{
		LessonID:           out.LessonID,
		EarnedXP:           out.EarnedXP,
		Score:              "100%",
		NewBadges:          make([]Badge, 0, len(out.NewBadges)),
		LeveledUp:          out.LeveledUp,
		NewLevel:           out.NewLevel,
		HasNext:            out.NextLessonID != "",
		CurriculumComplete: out.CurriculumComplete,
		Repeat:             out.Repeat,
	}
	for _, a := range out.NewBadges {
		m.NewBadges = append(m.NewBadges, Badge{ID: a.ID, Icon: a.Icon, Title: a.Title})
	}
	return m
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
