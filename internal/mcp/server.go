package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/academy/internal/academy"
	"github.com/felixgeelhaar/academy/internal/domain"
	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
)

// Version is reported to MCP clients during initialization
const Version = "0.1.0"

// Server wraps the MCP server with academy functionality
type Server struct {
	mcpServer *server.Server
	app       *academy.App
}

// Config contains configuration for the MCP server
type Config struct {
	App *academy.App
}

// NewServer creates a new MCP server for the academy
func NewServer(cfg Config) *Server {
	s := &Server{
		app: cfg.App,
	}

	s.mcpServer = server.New(server.Info{
		Name:    "esp8266-academy",
		Version: Version,
	}, server.WithInstructions(`
ESP8266 Academy teaches MicroPython on a simulated ESP8266 board.
Lessons unlock in order. Passing every test of a lesson awards XP and may unlock badges.

Available tools:
- academy_curriculum: List modules and lessons with their status
- academy_lesson: Show a lesson's theory and exercise
- academy_start: Open a lesson in the editor
- academy_run: Run code on the simulated board
- academy_test: Grade code against the lesson's tests
- academy_hint: Get a random hint for the open lesson
- academy_next: Move to the next lesson
- academy_progress: Show XP, level, streak and badges
`))

	s.registerTools()

	return s
}

// registerTools registers all academy MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("academy_curriculum").
		Description("List modules and lessons with locked/completed/current status.").
		Handler(s.handleCurriculum)

	s.mcpServer.Tool("academy_lesson").
		Description("Show the theory, description and starter code of a lesson.").
		Handler(s.handleLesson)

	s.mcpServer.Tool("academy_start").
		Description("Open a lesson. Locked lessons are refused.").
		Handler(s.handleStart)

	s.mcpServer.Tool("academy_run").
		Description("Run MicroPython code on the simulated ESP8266 and return the console.").
		Handler(s.handleRun)

	s.mcpServer.Tool("academy_test").
		Description("Grade code against the open lesson's tests. Awards XP when all pass.").
		Handler(s.handleTest)

	s.mcpServer.Tool("academy_hint").
		Description("Get one of the open lesson's hints.").
		Handler(s.handleHint)

	s.mcpServer.Tool("academy_next").
		Description("Advance to the lesson after the open one.").
		Handler(s.handleNext)

	s.mcpServer.Tool("academy_progress").
		Description("Show XP, level, streak, completed lessons and badges.").
		Handler(s.handleProgress)
}

// Input/Output types for tools

type CurriculumInput struct{}

type LessonLine struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	XP     int    `json:"xp"`
}

type ModuleLine struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Locked   bool         `json:"locked"`
	Progress string       `json:"progress"`
	Lessons  []LessonLine `json:"lessons"`
}

type CurriculumOutput struct {
	Modules []ModuleLine `json:"modules"`
}

type LessonInput struct {
	LessonID string `json:"lesson_id" jsonschema:"description=Lesson id such as 1.1"`
}

type LessonOutput struct {
	LessonID    string   `json:"lesson_id"`
	Title       string   `json:"title"`
	Difficulty  string   `json:"difficulty"`
	XP          int      `json:"xp"`
	Locked      bool     `json:"locked"`
	Completed   bool     `json:"completed"`
	Description string   `json:"description"`
	Theory      string   `json:"theory"`
	StarterCode string   `json:"starter_code"`
	Tests       []string `json:"tests"`
}

type StartOutput struct {
	LessonID string `json:"lesson_id"`
	Title    string `json:"title"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type CodeInput struct {
	Code string `json:"code,omitempty" jsonschema:"description=MicroPython source; the editor buffer is used when empty"`
}

type RunOutput struct {
	Console []string `json:"console"`
	Failed  bool     `json:"failed"`
}

type TestOutput struct {
	Summary            string   `json:"summary"`
	Score              int      `json:"score"`
	AllPassed          bool     `json:"all_passed"`
	Results            []string `json:"results"`
	EarnedXP           int      `json:"earned_xp,omitempty"`
	NewBadges          []string `json:"new_badges,omitempty"`
	LeveledUp          bool     `json:"leveled_up,omitempty"`
	CurriculumComplete bool     `json:"curriculum_complete,omitempty"`
}

type EmptyInput struct{}

type HintOutput struct {
	Hint string `json:"hint"`
}

type NextOutput struct {
	LessonID           string `json:"lesson_id,omitempty"`
	Title              string `json:"title,omitempty"`
	CurriculumComplete bool   `json:"curriculum_complete"`
	Message            string `json:"message"`
}

type ProgressOutput struct {
	TotalXP          int      `json:"total_xp"`
	Level            int      `json:"level"`
	StreakDays       int      `json:"streak_days"`
	CurrentLesson    string   `json:"current_lesson"`
	CompletedLessons []string `json:"completed_lessons"`
	Badges           []string `json:"badges"`
	OverallProgress  float64  `json:"overall_progress"`
}

// Tool handlers

func (s *Server) handleCurriculum(ctx context.Context, input CurriculumInput) (CurriculumOutput, error) {
	var out CurriculumOutput
	for _, card := range s.app.Curriculum() {
		m := ModuleLine{
			ID:       card.ID,
			Title:    card.Title,
			Locked:   card.Locked,
			Progress: card.ProgressLabel(),
		}
		for _, l := range card.Lessons {
			m.Lessons = append(m.Lessons, LessonLine{
				ID:     l.ID,
				Title:  l.Title,
				Status: string(l.Status),
				XP:     l.XPPoints,
			})
		}
		out.Modules = append(out.Modules, m)
	}
	return out, nil
}

func (s *Server) handleLesson(ctx context.Context, input LessonInput) (LessonOutput, error) {
	detail, err := s.app.Lesson(input.LessonID)
	if err != nil {
		return LessonOutput{}, fmt.Errorf("lesson %q: %w", input.LessonID, err)
	}
	l := detail.Lesson
	out := LessonOutput{
		LessonID:    l.ID,
		Title:       l.Title,
		Difficulty:  detail.Header.Difficulty,
		XP:          l.XPPoints,
		Locked:      detail.Locked,
		Completed:   detail.Completed,
		Description: l.Description,
		Theory:      l.Theory,
		StarterCode: l.StarterCode,
	}
	for _, tc := range l.TestCases {
		out.Tests = append(out.Tests, fmt.Sprintf("%s (%d pontos)", tc.Description, tc.Points))
	}
	return out, nil
}

func (s *Server) handleStart(ctx context.Context, input LessonInput) (StartOutput, error) {
	l, err := s.app.StartLesson(ctx, input.LessonID)
	if err != nil {
		return StartOutput{}, fmt.Errorf("start lesson %q: %w", input.LessonID, err)
	}
	return StartOutput{
		LessonID: l.ID,
		Title:    l.Title,
		Code:     s.app.Code(),
		Message:  fmt.Sprintf("Lição %s aberta. Use academy_run e academy_test.", l.ID),
	}, nil
}

func (s *Server) handleRun(ctx context.Context, input CodeInput) (RunOutput, error) {
	if input.Code != "" {
		s.app.SetCode(input.Code)
	}
	res, err := s.app.RunCode(ctx)
	if err != nil {
		return RunOutput{}, fmt.Errorf("run failed: %w", err)
	}
	out := RunOutput{Console: make([]string, 0, len(res.Console))}
	for _, line := range res.Console {
		out.Console = append(out.Console, line.Text)
		if line.Kind == domain.LineError {
			out.Failed = true
		}
	}
	return out, nil
}

func (s *Server) handleTest(ctx context.Context, input CodeInput) (TestOutput, error) {
	if input.Code != "" {
		s.app.SetCode(input.Code)
	}
	res, err := s.app.RunTests(ctx)
	if err != nil {
		return TestOutput{}, fmt.Errorf("tests failed to run: %w", err)
	}

	out := TestOutput{
		Summary:   res.Panel.Summary,
		Score:     res.Report.Score(),
		AllPassed: res.Report.AllPassed,
	}
	for _, row := range res.Panel.Rows {
		out.Results = append(out.Results, fmt.Sprintf("%s: %s", row.Description, row.Status))
	}
	if o := res.Outcome; o != nil {
		out.EarnedXP = o.EarnedXP
		out.LeveledUp = o.LeveledUp
		out.CurriculumComplete = o.CurriculumComplete
		for _, b := range o.NewBadges {
			out.NewBadges = append(out.NewBadges, b.Icon+" "+b.Title)
		}
	}
	return out, nil
}

func (s *Server) handleHint(ctx context.Context, input EmptyInput) (HintOutput, error) {
	hint, err := s.app.ShowHint()
	if err != nil {
		return HintOutput{}, fmt.Errorf("hint: %w", err)
	}
	return HintOutput{Hint: academy.HintPrefix + hint}, nil
}

func (s *Server) handleNext(ctx context.Context, input EmptyInput) (NextOutput, error) {
	l, err := s.app.GoToNextLesson(ctx)
	if err != nil {
		return NextOutput{}, fmt.Errorf("next lesson: %w", err)
	}
	if l == nil {
		return NextOutput{
			CurriculumComplete: true,
			Message:            academy.CurriculumDone,
		}, nil
	}
	return NextOutput{
		LessonID: l.ID,
		Title:    l.Title,
		Message:  fmt.Sprintf("Próxima lição: %s", l.Title),
	}, nil
}

func (s *Server) handleProgress(ctx context.Context, input EmptyInput) (ProgressOutput, error) {
	p := s.app.Progress()
	dash := s.app.Dashboard()

	badges := make([]string, 0, len(dash.Badges))
	for _, b := range dash.Badges {
		badges = append(badges, strings.TrimSpace(b.Icon+" "+b.Title))
	}

	return ProgressOutput{
		TotalXP:          p.TotalXP,
		Level:            p.CurrentLevel,
		StreakDays:       p.StreakDays,
		CurrentLesson:    p.CurrentLesson,
		CompletedLessons: p.CompletedLessons,
		Badges:           badges,
		OverallProgress:  dash.OverallProgress,
	}, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
