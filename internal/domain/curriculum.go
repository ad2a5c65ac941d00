package domain

// Module is an ordered group of lessons sharing prerequisites
type Module struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Difficulty     string    `json:"difficulty"`
	EstimatedHours int       `json:"estimated_hours"`
	Prerequisites  []string  `json:"prerequisites"`
	Lessons        []*Lesson `json:"lessons"`
}

// Lesson is a single graded coding exercise
type Lesson struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	XPPoints         int        `json:"xp_points"`
	Difficulty       int        `json:"difficulty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	Prerequisites    []string   `json:"prerequisites,omitempty"`
	Theory           string     `json:"theory"`
	StarterCode      string     `json:"starter_code"`
	SolutionCode     string     `json:"solution_code"`
	TestCases        []TestCase `json:"test_cases"`
	Hints            []string   `json:"hints"`
}

// CheckKind identifies which predicate family a test case uses
type CheckKind string

const (
	CheckInvalid        CheckKind = ""
	CheckOutputLines    CheckKind = "output_lines"
	CheckOutputContains CheckKind = "output_contains"
	CheckCodeContains   CheckKind = "code_contains"
	CheckVariables      CheckKind = "variables"
)

// TestCase is a scored check against submitted code. Exactly one of the
// predicate fields is set.
type TestCase struct {
	Description    string   `json:"description"`
	Points         int      `json:"points"`
	MinOutputLines int      `json:"min_output_lines,omitempty"`
	OutputContains []string `json:"output_contains,omitempty"`
	CodeContains   []string `json:"code_contains,omitempty"`
	Variables      []string `json:"variables,omitempty"`
}

// Kind returns the predicate family of the test case, or CheckInvalid when
// zero or several families are set.
func (t TestCase) Kind() CheckKind {
	kind := CheckInvalid
	set := 0
	if t.MinOutputLines > 0 {
		kind = CheckOutputLines
		set++
	}
	if len(t.OutputContains) > 0 {
		kind = CheckOutputContains
		set++
	}
	if len(t.CodeContains) > 0 {
		kind = CheckCodeContains
		set++
	}
	if len(t.Variables) > 0 {
		kind = CheckVariables
		set++
	}
	if set != 1 {
		return CheckInvalid
	}
	return kind
}

// LessonIndex returns the position of a lesson in the module, or -1
func (m *Module) LessonIndex(lessonID string) int {
	for i, l := range m.Lessons {
		if l.ID == lessonID {
			return i
		}
	}
	return -1
}

// CompletedCount returns how many of the module's lessons are in the set
func (m *Module) CompletedCount(completed LessonSet) int {
	n := 0
	for _, l := range m.Lessons {
		if completed.Has(l.ID) {
			n++
		}
	}
	return n
}

// IsComplete reports whether every lesson of the module is completed
func (m *Module) IsComplete(completed LessonSet) bool {
	return m.CompletedCount(completed) == len(m.Lessons)
}

// LessonSet is a membership view over completed lesson ids
type LessonSet map[string]struct{}

// NewLessonSet builds a set from ids
func NewLessonSet(ids []string) LessonSet {
	set := make(LessonSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports membership
func (s LessonSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}
