package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/felixgeelhaar/academy/internal/academy"
	"github.com/felixgeelhaar/academy/internal/view"
)

// cmdCurriculum lists modules and lessons with their status
func cmdCurriculum() error {
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var resp struct {
		Modules []view.ModuleCard `json:"modules"`
	}
	if err := c.get("/v1/curriculum", &resp); err != nil {
		return fmt.Errorf("get curriculum: %w", err)
	}

	fmt.Println(titleStyle.Render("📚 Currículo"))
	for _, m := range resp.Modules {
		fmt.Println(renderModule(m))
	}
	return nil
}

func renderModule(m view.ModuleCard) string {
	head := headerStyle.Render(m.Title)
	if m.Locked {
		head = mutedStyle.Render("🔒 " + m.Title)
	}

	lines := []string{
		head,
		mutedStyle.Render(m.Description),
		fmt.Sprintf("%s %s", renderProgressBar(float64(m.ProgressPercent)/100, 20), m.ProgressLabel()),
		"",
	}
	for _, l := range m.Lessons {
		title := fmt.Sprintf("%s %s %s", l.Icon, l.ID, l.Title)
		switch l.Status {
		case view.StatusLocked:
			title = mutedStyle.Render(title)
		case view.StatusCompleted:
			title = successStyle.Render(title)
		case view.StatusCurrent:
			title = titleStyle.Render(title)
		}
		lines = append(lines, fmt.Sprintf("%s  %s", title, mutedStyle.Render(fmt.Sprintf("+%d XP", l.XPPoints))))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

// cmdLesson shows a lesson without opening it
func cmdLesson(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("lesson ID required (e.g., 1.1)")
	}
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var detail academy.LessonDetail
	if err := c.get("/v1/lessons/"+args[0], &detail); err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}

	l := detail.Lesson
	h := detail.Header
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s %s", l.ID, l.Title)))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%s  %s  %s", h.Difficulty, h.Time, h.XP)))
	switch {
	case detail.Completed:
		fmt.Println(successStyle.Render("✅ Concluída"))
	case detail.Locked:
		fmt.Println(warningStyle.Render("🔒 Bloqueada"))
	}
	fmt.Println()
	fmt.Println(l.Theory)
	fmt.Println()
	fmt.Println(headerStyle.Render("Testes"))
	for _, tc := range l.TestCases {
		fmt.Printf("  • %s (%d pontos)\n", tc.Description, tc.Points)
	}
	return nil
}

// cmdOpen makes a lesson the active one and prints its starter code
func cmdOpen(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("lesson ID required (e.g., 1.1)")
	}
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var state academy.State
	if err := c.post("/v1/lessons/"+args[0]+"/start", nil, &state); err != nil {
		return fmt.Errorf("open lesson: %w", err)
	}

	if state.Lesson != nil {
		fmt.Println(titleStyle.Render(fmt.Sprintf("%s %s", state.Lesson.LessonID, state.Lesson.Title)))
		fmt.Println(mutedStyle.Render(fmt.Sprintf("%s  %s  %s", state.Lesson.Difficulty, state.Lesson.Time, state.Lesson.XP)))
	}
	fmt.Println()
	fmt.Println(cardStyle.Render(state.Code))
	return nil
}

// readCode loads source from a file, "-" for stdin, or returns nil to use
// the daemon's editor buffer
func readCode(args []string) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("read code: %w", err)
	}
	return map[string]string{"code": string(data)}, nil
}

// cmdRun executes code on the simulated board
func cmdRun(args []string) error {
	body, err := readCode(args)
	if err != nil {
		return err
	}
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var result academy.RunResult
	if err := c.post("/v1/run", body, &result); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	for _, line := range result.Console {
		fmt.Println(lineStyle(string(line.Kind)).Render(line.Text))
	}
	return nil
}

// cmdTest grades code against the open lesson
func cmdTest(args []string) error {
	body, err := readCode(args)
	if err != nil {
		return err
	}
	c, err := daemonClient()
	if err != nil {
		return err
	}

	fmt.Println(mutedStyle.Render(academy.TestingText))

	var result academy.TestResult
	if err := c.post("/v1/tests", body, &result); err != nil {
		return fmt.Errorf("test: %w", err)
	}

	for _, row := range result.Panel.Rows {
		style := errorStyle
		if row.Passed {
			style = successStyle
		}
		fmt.Printf("%s  %s\n", style.Render(row.Status), row.Description)
		if row.Feedback != "" {
			fmt.Println("   " + mutedStyle.Render(row.Feedback))
		}
	}
	fmt.Println()
	fmt.Println(headerStyle.Render(result.Panel.Summary))

	if result.Modal != nil {
		fmt.Println()
		fmt.Println(renderModal(*result.Modal))
	}
	return nil
}

func renderModal(m view.CompletionModal) string {
	lines := []string{
		successStyle.Bold(true).Render("🎉 Lição Concluída!"),
		fmt.Sprintf("+%d XP  •  %s", m.EarnedXP, m.Score),
	}
	if m.LeveledUp {
		lines = append(lines, titleStyle.Render(fmt.Sprintf("⬆️ Nível %d!", m.NewLevel)))
	}
	if len(m.NewBadges) > 0 {
		lines = append(lines, "", "🎉 Novas Conquistas!")
		for _, b := range m.NewBadges {
			lines = append(lines, b.Icon+" "+b.Title)
		}
	}
	switch {
	case m.CurriculumComplete:
		lines = append(lines, "", academy.CurriculumDone)
	case m.HasNext:
		lines = append(lines, "", mutedStyle.Render("'academy next' para continuar"))
	}
	return modalStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...))
}

// cmdHint prints a hint for the open lesson
func cmdHint() error {
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := c.post("/v1/hint", nil, &resp); err != nil {
		return fmt.Errorf("hint: %w", err)
	}
	fmt.Println(warningStyle.Render(resp.Message))
	return nil
}

// cmdNext moves to the following lesson
func cmdNext() error {
	c, err := daemonClient()
	if err != nil {
		return err
	}

	var resp struct {
		LessonID           string        `json:"lesson_id"`
		CurriculumComplete bool          `json:"curriculum_complete"`
		State              academy.State `json:"state"`
	}
	if err := c.post("/v1/next", nil, &resp); err != nil {
		return fmt.Errorf("next: %w", err)
	}

	if resp.CurriculumComplete {
		fmt.Println(successStyle.Render(academy.CurriculumDone))
		return nil
	}
	if h := resp.State.Lesson; h != nil {
		fmt.Println(titleStyle.Render(fmt.Sprintf("▶️ %s %s", h.LessonID, h.Title)))
	}
	fmt.Println()
	fmt.Println(cardStyle.Render(resp.State.Code))
	return nil
}
