package curriculum

import (
	"fmt"

	"github.com/felixgeelhaar/academy/internal/domain"
)

// Validate checks catalog invariants: unique ids, resolvable prerequisites,
// positive XP and points, difficulty in 1..5, one predicate per test case.
func Validate(c *Catalog) error {
	if len(c.Modules) == 0 {
		return fmt.Errorf("%w: no modules", domain.ErrInvalidCatalog)
	}

	modules := make(map[string]bool, len(c.Modules))
	lessons := make(map[string]bool)
	for _, m := range c.Modules {
		if m.ID == "" {
			return fmt.Errorf("%w: module without id", domain.ErrInvalidCatalog)
		}
		if modules[m.ID] {
			return fmt.Errorf("%w: duplicate module id %s", domain.ErrInvalidCatalog, m.ID)
		}
		modules[m.ID] = true
		if len(m.Lessons) == 0 {
			return fmt.Errorf("%w: module %s has no lessons", domain.ErrInvalidCatalog, m.ID)
		}
		for _, l := range m.Lessons {
			if err := validateLesson(l); err != nil {
				return err
			}
			if lessons[l.ID] {
				return fmt.Errorf("%w: duplicate lesson id %s", domain.ErrInvalidCatalog, l.ID)
			}
			lessons[l.ID] = true
		}
	}

	for _, m := range c.Modules {
		for _, p := range m.Prerequisites {
			if !modules[p] {
				return fmt.Errorf("%w: module %s requires unknown module %s", domain.ErrInvalidCatalog, m.ID, p)
			}
		}
		for _, l := range m.Lessons {
			for _, p := range l.Prerequisites {
				if !lessons[p] {
					return fmt.Errorf("%w: lesson %s requires unknown lesson %s", domain.ErrInvalidCatalog, l.ID, p)
				}
			}
		}
	}

	achievements := make(map[string]bool, len(c.Achievements))
	for _, a := range c.Achievements {
		if achievements[a.ID] {
			return fmt.Errorf("%w: duplicate achievement id %s", domain.ErrInvalidCatalog, a.ID)
		}
		achievements[a.ID] = true
		if a.XPReward < 0 {
			return fmt.Errorf("%w: achievement %s has negative reward", domain.ErrInvalidCatalog, a.ID)
		}
		switch a.Condition.Kind {
		case domain.PredicateLessonEquals:
			if !lessons[a.Condition.Lesson] {
				return fmt.Errorf("%w: achievement %s references unknown lesson %s", domain.ErrInvalidCatalog, a.ID, a.Condition.Lesson)
			}
		case domain.PredicateLessonsInWindow:
			if a.Condition.Count <= 0 || a.Condition.Days <= 0 {
				return fmt.Errorf("%w: achievement %s has an empty window", domain.ErrInvalidCatalog, a.ID)
			}
		}
	}
	return nil
}

func validateLesson(l *domain.Lesson) error {
	if l.ID == "" {
		return fmt.Errorf("%w: lesson without id", domain.ErrInvalidCatalog)
	}
	if l.XPPoints <= 0 {
		return fmt.Errorf("%w: lesson %s must award XP", domain.ErrInvalidCatalog, l.ID)
	}
	if l.Difficulty < 1 || l.Difficulty > 5 {
		return fmt.Errorf("%w: lesson %s difficulty %d out of range", domain.ErrInvalidCatalog, l.ID, l.Difficulty)
	}
	for i, tc := range l.TestCases {
		if tc.Points <= 0 {
			return fmt.Errorf("%w: lesson %s test %d must award points", domain.ErrInvalidCatalog, l.ID, i+1)
		}
		if tc.Kind() == domain.CheckInvalid {
			return fmt.Errorf("%w: lesson %s test %d needs exactly one check", domain.ErrInvalidCatalog, l.ID, i+1)
		}
	}
	return nil
}
