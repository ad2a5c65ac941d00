// Package engine applies lesson completions to the progress record: XP,
// levels, achievements, streaks and the next lesson.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/academy/internal/curriculum"
	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/progress"
)

// RepeatPolicy decides what re-completing a lesson awards
type RepeatPolicy string

const (
	// RepeatNoAward awards nothing for a lesson already completed
	RepeatNoAward RepeatPolicy = "no_award"
	// RepeatAwardXP awards the lesson XP again; badges stay one-time
	RepeatAwardXP RepeatPolicy = "award_xp"
)

// Outcome summarises one completion
type Outcome struct {
	LessonID           string                `json:"lesson_id"`
	LessonXP           int                   `json:"lesson_xp"`
	BadgeXP            int                   `json:"badge_xp"`
	EarnedXP           int                   `json:"earned_xp"`
	NewBadges          []*domain.Achievement `json:"new_badges"`
	LeveledUp          bool                  `json:"leveled_up"`
	NewLevel           int                   `json:"new_level"`
	NextLessonID       string                `json:"next_lesson_id,omitempty"`
	CurriculumComplete bool                  `json:"curriculum_complete"`
	Repeat             bool                  `json:"repeat"`
}

// Engine mutates progress records in response to learner actions
type Engine struct {
	registry   *curriculum.Registry
	store      *progress.Store
	dispatcher *domain.EventDispatcher
	policy     RepeatPolicy
	logger     *slog.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithRepeatPolicy sets the repeat completion policy. Empty keeps the
// default.
func WithRepeatPolicy(p RepeatPolicy) Option {
	return func(e *Engine) {
		if p != "" {
			e.policy = p
		}
	}
}

// WithDispatcher publishes domain events through d
func WithDispatcher(d *domain.EventDispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine
func New(registry *curriculum.Registry, store *progress.Store, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		policy:   RepeatNoAward,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the active repeat policy
func (e *Engine) Policy() RepeatPolicy {
	return e.policy
}

// Complete records that every test of lessonID passed. Unknown lessons are
// a silent no-op and return false without touching p.
func (e *Engine) Complete(ctx context.Context, p *domain.UserProgress, lessonID string, now time.Time) (Outcome, bool) {
	lesson, ok := e.registry.FindLesson(lessonID)
	if !ok {
		return Outcome{}, false
	}
	if _, ok := e.registry.ModuleOf(lessonID); !ok {
		return Outcome{}, false
	}

	startLevel := p.CurrentLevel
	repeat := !p.MarkCompleted(lessonID)
	out := Outcome{LessonID: lessonID, Repeat: repeat, NewBadges: []*domain.Achievement{}}
	var events []domain.Event

	if !repeat || e.policy == RepeatAwardXP {
		out.LessonXP = lesson.XPPoints
		p.AddXP(lesson.XPPoints)
	}

	if !repeat {
		for _, a := range e.registry.Achievements() {
			if p.HasBadge(a.ID) || !e.satisfied(a.Condition, p, lessonID, now) {
				continue
			}
			p.AddBadge(a.ID)
			p.AddXP(a.XPReward)
			out.BadgeXP += a.XPReward
			out.NewBadges = append(out.NewBadges, a)
			events = append(events, domain.NewAchievementUnlockedEvent(a, now))
		}
	}
	out.EarnedXP = out.LessonXP + out.BadgeXP
	p.CurrentLevel = domain.LevelForXP(p.TotalXP)

	p.StreakDays = nextStreak(p, now)
	p.LogCompletion(domain.CompletionEntry{LessonID: lessonID, XP: out.EarnedXP, At: now})

	if next, ok := e.registry.NextLesson(lessonID); ok {
		p.CurrentLesson = next
		out.NextLessonID = next
	} else {
		out.CurriculumComplete = true
	}
	p.LastActivity = now

	out.NewLevel = p.CurrentLevel
	out.LeveledUp = p.CurrentLevel > startLevel

	// p is already mutated; a departed caller must not drop the write
	if err := e.store.Save(context.WithoutCancel(ctx), p); err != nil {
		e.logger.Error("save progress failed", "lesson", lessonID, "error", err)
	}

	events = append([]domain.Event{domain.NewLessonCompletedEvent(lessonID, out.EarnedXP, p.TotalXP, repeat, now)}, events...)
	if out.LeveledUp {
		events = append(events, domain.NewLevelUpEvent(lessonID, startLevel, out.NewLevel, now))
	}
	e.publish(events)

	e.logger.Info("lesson completed",
		"lesson", lessonID,
		"earned_xp", out.EarnedXP,
		"total_xp", p.TotalXP,
		"level", p.CurrentLevel,
		"badges", len(out.NewBadges),
		"repeat", repeat)

	return out, true
}

// StartLesson makes lessonID the current lesson and persists. Unknown ids
// are a no-op returning false. Locks are not enforced here.
func (e *Engine) StartLesson(ctx context.Context, p *domain.UserProgress, lessonID string, now time.Time) bool {
	if _, ok := e.registry.FindLesson(lessonID); !ok {
		return false
	}
	if p.CurrentLesson != lessonID {
		p.CurrentLesson = lessonID
		if err := e.store.Save(context.WithoutCancel(ctx), p); err != nil {
			e.logger.Error("save progress failed", "lesson", lessonID, "error", err)
		}
	}
	e.publish([]domain.Event{domain.NewLessonStartedEvent(lessonID, now)})
	return true
}

// IsLessonLocked reports whether lessonID is locked for p. Unknown lessons
// are locked.
func (e *Engine) IsLessonLocked(p *domain.UserProgress, lessonID string) bool {
	l, ok := e.registry.FindLesson(lessonID)
	if !ok {
		return true
	}
	return e.registry.IsLessonLocked(l, p.Completed())
}

func (e *Engine) publish(events []domain.Event) {
	if e.dispatcher == nil {
		return
	}
	e.dispatcher.PublishAll(events)
}

// satisfied evaluates an achievement predicate for a completion of lessonID
// at now. The completion log does not yet contain this completion.
func (e *Engine) satisfied(cond domain.Predicate, p *domain.UserProgress, lessonID string, now time.Time) bool {
	switch cond.Kind {
	case domain.PredicateLessonEquals:
		return lessonID == cond.Lesson
	case domain.PredicateLessonsInWindow:
		return distinctSince(p.CompletionLog, lessonID, now.Add(-time.Duration(cond.Days)*24*time.Hour)) >= cond.Count
	}
	return false
}

// distinctSince counts distinct lessons completed at or after since,
// including current
func distinctSince(log []domain.CompletionEntry, current string, since time.Time) int {
	seen := map[string]struct{}{current: {}}
	for _, entry := range log {
		if !entry.At.Before(since) {
			seen[entry.LessonID] = struct{}{}
		}
	}
	return len(seen)
}

// nextStreak returns the streak after a completion at now. Same calendar
// day keeps it (minimum 1), the following day extends it, later resets it.
func nextStreak(p *domain.UserProgress, now time.Time) int {
	var last time.Time
	switch {
	case len(p.CompletionLog) > 0:
		last = p.CompletionLog[len(p.CompletionLog)-1].At
	case p.StreakDays > 0:
		last = p.LastActivity
	default:
		return 1
	}

	switch daysBetween(last, now) {
	case 0:
		return max(p.StreakDays, 1)
	case 1:
		return p.StreakDays + 1
	default:
		return 1
	}
}

// daysBetween counts calendar days from a to b in b's location
func daysBetween(a, b time.Time) int {
	loc := b.Location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.Date()
	start := time.Date(ay, am, ad, 12, 0, 0, 0, loc)
	end := time.Date(by, bm, bd, 12, 0, 0, 0, loc)
	return int(end.Sub(start).Round(24*time.Hour) / (24 * time.Hour))
}
