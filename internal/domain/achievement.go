package domain

// PredicateKind tags the variant held by a Predicate
type PredicateKind string

const (
	// PredicateLessonEquals matches when the just-completed lesson has a given id
	PredicateLessonEquals PredicateKind = "lesson_equals"
	// PredicateLessonsInWindow matches when enough distinct lessons were
	// completed within a trailing window of days
	PredicateLessonsInWindow PredicateKind = "lessons_in_window"
)

// Predicate is the unlock condition of an achievement
type Predicate struct {
	Kind   PredicateKind `json:"kind"`
	Lesson string        `json:"lesson,omitempty"`
	Count  int           `json:"count,omitempty"`
	Days   int           `json:"days,omitempty"`
}

// LessonEquals builds a lesson_equals predicate
func LessonEquals(lessonID string) Predicate {
	return Predicate{Kind: PredicateLessonEquals, Lesson: lessonID}
}

// LessonsInWindow builds a lessons_in_window predicate
func LessonsInWindow(count, days int) Predicate {
	return Predicate{Kind: PredicateLessonsInWindow, Count: count, Days: days}
}

// Achievement is a one-time unlockable reward
type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	XPReward    int       `json:"xp_reward"`
	Condition   Predicate `json:"condition"`
}
