package domain

import "time"

// XPPerLevel is the experience needed for each level
const XPPerLevel = 200

// maxCompletionLog bounds the completion history kept in the record
const maxCompletionLog = 100

// UserProgress is the persisted learner state. Field names are the
// persisted record format.
type UserProgress struct {
	CurrentLevel     int               `json:"current_level"`
	TotalXP          int               `json:"total_xp"`
	CompletedLessons []string          `json:"completed_lessons"`
	CurrentLesson    string            `json:"current_lesson"`
	StreakDays       int               `json:"streak_days"`
	BadgesEarned     []string          `json:"badges_earned"`
	LearningPath     string            `json:"learning_path"`
	LastActivity     time.Time         `json:"last_activity"`
	CompletionLog    []CompletionEntry `json:"completion_log,omitempty"`
}

// CompletionEntry records one lesson completion
type CompletionEntry struct {
	LessonID string    `json:"lesson_id"`
	XP       int       `json:"xp"`
	At       time.Time `json:"at"`
}

// LevelForXP derives the level from total experience
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// NewUserProgress returns the default record for a new learner
func NewUserProgress(firstLesson string, now time.Time) *UserProgress {
	return &UserProgress{
		CurrentLevel:     1,
		TotalXP:          0,
		CompletedLessons: []string{},
		CurrentLesson:    firstLesson,
		StreakDays:       0,
		BadgesEarned:     []string{},
		LearningPath:     "beginner",
		LastActivity:     now,
	}
}

// Completed returns the completed lessons as a set
func (p *UserProgress) Completed() LessonSet {
	return NewLessonSet(p.CompletedLessons)
}

// HasCompleted reports whether a lesson is in the completed set
func (p *UserProgress) HasCompleted(lessonID string) bool {
	for _, id := range p.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// MarkCompleted appends the lesson if absent and reports whether it was added
func (p *UserProgress) MarkCompleted(lessonID string) bool {
	if p.HasCompleted(lessonID) {
		return false
	}
	p.CompletedLessons = append(p.CompletedLessons, lessonID)
	return true
}

// HasBadge reports whether an achievement was earned
func (p *UserProgress) HasBadge(id string) bool {
	for _, b := range p.BadgesEarned {
		if b == id {
			return true
		}
	}
	return false
}

// AddBadge appends the badge if absent and reports whether it was added
func (p *UserProgress) AddBadge(id string) bool {
	if p.HasBadge(id) {
		return false
	}
	p.BadgesEarned = append(p.BadgesEarned, id)
	return true
}

// AddXP adds experience and recomputes the level. It reports whether the
// level increased.
func (p *UserProgress) AddXP(xp int) bool {
	before := p.CurrentLevel
	p.TotalXP += xp
	if p.TotalXP < 0 {
		p.TotalXP = 0
	}
	p.CurrentLevel = LevelForXP(p.TotalXP)
	return p.CurrentLevel > before
}

// LogCompletion appends to the bounded completion log
func (p *UserProgress) LogCompletion(entry CompletionEntry) {
	p.CompletionLog = append(p.CompletionLog, entry)
	if len(p.CompletionLog) > maxCompletionLog {
		p.CompletionLog = p.CompletionLog[len(p.CompletionLog)-maxCompletionLog:]
	}
}

// Normalize removes duplicate ids, fills nil slices and recomputes the level
func (p *UserProgress) Normalize() {
	p.CompletedLessons = dedupe(p.CompletedLessons)
	p.BadgesEarned = dedupe(p.BadgesEarned)
	p.CurrentLevel = LevelForXP(p.TotalXP)
	if p.LearningPath == "" {
		p.LearningPath = "beginner"
	}
}

// Clone returns a deep copy
func (p *UserProgress) Clone() *UserProgress {
	c := *p
	c.CompletedLessons = append([]string{}, p.CompletedLessons...)
	c.BadgesEarned = append([]string{}, p.BadgesEarned...)
	if p.CompletionLog != nil {
		c.CompletionLog = append([]CompletionEntry{}, p.CompletionLog...)
	}
	return &c
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
