package curriculum

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/felixgeelhaar/academy/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// CatalogFile represents the YAML structure of a catalog
type CatalogFile struct {
	Modules      []ModuleFile      `yaml:"modules"`
	Achievements []AchievementFile `yaml:"achievements"`
}

// ModuleFile represents the YAML structure of a module
type ModuleFile struct {
	ID             string       `yaml:"id"`
	Title          string       `yaml:"title"`
	Description    string       `yaml:"description"`
	Difficulty     string       `yaml:"difficulty"`
	EstimatedHours int          `yaml:"estimated_hours"`
	Prerequisites  []string     `yaml:"prerequisites"`
	Lessons        []LessonFile `yaml:"lessons"`
}

// LessonFile represents the YAML structure of a lesson
type LessonFile struct {
	ID               string         `yaml:"id"`
	Title            string         `yaml:"title"`
	Description      string         `yaml:"description"`
	XPPoints         int            `yaml:"xp_points"`
	Difficulty       int            `yaml:"difficulty"`
	EstimatedMinutes int            `yaml:"estimated_minutes"`
	Prerequisites    []string       `yaml:"prerequisites"`
	Theory           string         `yaml:"theory"`
	StarterCode      string         `yaml:"starter_code"`
	SolutionCode     string         `yaml:"solution_code"`
	TestCases        []TestCaseFile `yaml:"test_cases"`
	Hints            []string       `yaml:"hints"`
}

// TestCaseFile represents the YAML structure of a test case.
// Substring and name lists accept a single scalar or a sequence.
type TestCaseFile struct {
	Description    string     `yaml:"description"`
	Points         int        `yaml:"points"`
	MinOutputLines int        `yaml:"min_output_lines"`
	OutputContains StringList `yaml:"output_contains"`
	CodeContains   StringList `yaml:"code_contains"`
	Variables      StringList `yaml:"variables"`
}

// AchievementFile represents the YAML structure of an achievement
type AchievementFile struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
	XPReward    int    `yaml:"xp_reward"`
	Condition   struct {
		LessonEquals    string `yaml:"lesson_equals"`
		LessonsInWindow *struct {
			Count int `yaml:"count"`
			Days  int `yaml:"days"`
		} `yaml:"lessons_in_window"`
	} `yaml:"condition"`
}

// StringList is a YAML string sequence that also accepts a lone scalar
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var v string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = StringList{v}
		return nil
	case yaml.SequenceNode:
		var v []string
		if err := node.Decode(&v); err != nil {
			return err
		}
		*s = v
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", node.Line)
	}
}

// Catalog is the decoded, validated content
type Catalog struct {
	Modules      []*domain.Module
	Achievements []*domain.Achievement
}

// Loader reads catalogs from the embedded default or a file on disk
type Loader struct {
	path string
}

// NewLoader creates a loader. An empty path selects the embedded catalog.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Path returns the override catalog path, empty for the embedded one
func (l *Loader) Path() string {
	return l.path
}

// Load reads, decodes and validates the catalog
func (l *Loader) Load() (*Catalog, error) {
	data := defaultCatalog
	if l.path != "" {
		b, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("read catalog file: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document
func Parse(data []byte) (*Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	catalog := &Catalog{
		Modules:      make([]*domain.Module, 0, len(file.Modules)),
		Achievements: make([]*domain.Achievement, 0, len(file.Achievements)),
	}

	for _, mf := range file.Modules {
		module := &domain.Module{
			ID:             mf.ID,
			Title:          mf.Title,
			Description:    mf.Description,
			Difficulty:     mf.Difficulty,
			EstimatedHours: mf.EstimatedHours,
			Prerequisites:  nonNil(mf.Prerequisites),
			Lessons:        make([]*domain.Lesson, 0, len(mf.Lessons)),
		}
		for _, lf := range mf.Lessons {
			module.Lessons = append(module.Lessons, toLesson(lf))
		}
		catalog.Modules = append(catalog.Modules, module)
	}

	for _, af := range file.Achievements {
		a := &domain.Achievement{
			ID:          af.ID,
			Title:       af.Title,
			Description: af.Description,
			Icon:        af.Icon,
			XPReward:    af.XPReward,
		}
		switch {
		case af.Condition.LessonEquals != "" && af.Condition.LessonsInWindow != nil:
			return nil, fmt.Errorf("%w: achievement %s has several conditions", domain.ErrInvalidCatalog, af.ID)
		case af.Condition.LessonEquals != "":
			a.Condition = domain.LessonEquals(af.Condition.LessonEquals)
		case af.Condition.LessonsInWindow != nil:
			a.Condition = domain.LessonsInWindow(af.Condition.LessonsInWindow.Count, af.Condition.LessonsInWindow.Days)
		default:
			return nil, fmt.Errorf("%w: achievement %s has no condition", domain.ErrInvalidCatalog, af.ID)
		}
		catalog.Achievements = append(catalog.Achievements, a)
	}

	if err := Validate(catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}

func toLesson(lf LessonFile) *domain.Lesson {
	lesson := &domain.Lesson{
		ID:               lf.ID,
		Title:            lf.Title,
		Description:      lf.Description,
		XPPoints:         lf.XPPoints,
		Difficulty:       lf.Difficulty,
		EstimatedMinutes: lf.EstimatedMinutes,
		Prerequisites:    nonNil(lf.Prerequisites),
		Theory:           lf.Theory,
		StarterCode:      lf.StarterCode,
		SolutionCode:     lf.SolutionCode,
		TestCases:        make([]domain.TestCase, 0, len(lf.TestCases)),
		Hints:            nonNil(lf.Hints),
	}
	for _, tf := range lf.TestCases {
		lesson.TestCases = append(lesson.TestCases, domain.TestCase{
			Description:    tf.Description,
			Points:         tf.Points,
			MinOutputLines: tf.MinOutputLines,
			OutputContains: tf.OutputContains,
			CodeContains:   tf.CodeContains,
			Variables:      tf.Variables,
		})
	}
	return lesson
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
