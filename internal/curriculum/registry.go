package curriculum

import (
	"fmt"

	"github.com/felixgeelhaar/academy/internal/domain"
)

// Registry provides read-only access to the loaded curriculum. It is
// immutable after construction and safe for concurrent use.
type Registry struct {
	modules      []*domain.Module
	achievements []*domain.Achievement
	lessons      map[string]*domain.Lesson
	moduleOf     map[string]*domain.Module
	order        []string
}

// NewRegistry indexes a validated catalog
func NewRegistry(c *Catalog) *Registry {
	r := &Registry{
		modules:      c.Modules,
		achievements: c.Achievements,
		lessons:      make(map[string]*domain.Lesson),
		moduleOf:     make(map[string]*domain.Module),
	}
	for _, m := range c.Modules {
		for _, l := range m.Lessons {
			r.lessons[l.ID] = l
			r.moduleOf[l.ID] = m
			r.order = append(r.order, l.ID)
		}
	}
	return r
}

// Load builds a registry from the loader's catalog
func Load(loader *Loader) (*Registry, error) {
	c, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return NewRegistry(c), nil
}

// Default builds a registry from the embedded catalog
func Default() (*Registry, error) {
	return Load(NewLoader(""))
}

// Modules returns all modules in catalog order
func (r *Registry) Modules() []*domain.Module {
	return r.modules
}

// Achievements returns all achievements in catalog order
func (r *Registry) Achievements() []*domain.Achievement {
	return r.achievements
}

// FindModule returns a module by id
func (r *Registry) FindModule(id string) (*domain.Module, bool) {
	for _, m := range r.modules {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// FindLesson returns a lesson by id
func (r *Registry) FindLesson(id string) (*domain.Lesson, bool) {
	l, ok := r.lessons[id]
	return l, ok
}

// ModuleOf returns the module containing a lesson
func (r *Registry) ModuleOf(lessonID string) (*domain.Module, bool) {
	m, ok := r.moduleOf[lessonID]
	return m, ok
}

// FirstLessonID returns the id of the first lesson of the first module
func (r *Registry) FirstLessonID() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// LessonCount returns the number of lessons across all modules
func (r *Registry) LessonCount() int {
	return len(r.order)
}

// NextLesson returns the lesson after the given one: the next lesson of the
// same module, else the first lesson of the following module. ok is false
// when the lesson is the last of the catalog or unknown.
func (r *Registry) NextLesson(lessonID string) (string, bool) {
	m, ok := r.moduleOf[lessonID]
	if !ok {
		return "", false
	}
	idx := m.LessonIndex(lessonID)
	if idx+1 < len(m.Lessons) {
		return m.Lessons[idx+1].ID, true
	}
	for i, mod := range r.modules {
		if mod.ID != m.ID {
			continue
		}
		for _, next := range r.modules[i+1:] {
			if len(next.Lessons) > 0 {
				return next.Lessons[0].ID, true
			}
		}
	}
	return "", false
}

// IsModuleLocked reports whether some prerequisite module is not fully
// completed. Unknown prerequisite ids are ignored.
func (r *Registry) IsModuleLocked(m *domain.Module, completed domain.LessonSet) bool {
	for _, id := range m.Prerequisites {
		prereq, ok := r.FindModule(id)
		if !ok {
			continue
		}
		if !prereq.IsComplete(completed) {
			return true
		}
	}
	return false
}

// IsLessonLocked reports whether the lesson's module is locked or one of its
// prerequisite lessons is not completed
func (r *Registry) IsLessonLocked(l *domain.Lesson, completed domain.LessonSet) bool {
	if m, ok := r.moduleOf[l.ID]; ok && r.IsModuleLocked(m, completed) {
		return true
	}
	for _, id := range l.Prerequisites {
		if !completed.Has(id) {
			return true
		}
	}
	return false
}

// CompletedModules counts modules whose lessons are all completed
func (r *Registry) CompletedModules(completed domain.LessonSet) int {
	n := 0
	for _, m := range r.modules {
		if m.IsComplete(completed) {
			n++
		}
	}
	return n
}
