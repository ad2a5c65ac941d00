// Package academy holds the application state and the view controller
// actions: navigation, the editor buffer, simulated runs, grading and the
// completion flow.
package academy

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/felixgeelhaar/academy/internal/curriculum"
	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/engine"
	"github.com/felixgeelhaar/academy/internal/grader"
	"github.com/felixgeelhaar/academy/internal/progress"
	"github.com/felixgeelhaar/academy/internal/simulator"
	"github.com/felixgeelhaar/academy/internal/view"
)

// View is a top-level screen
type View string

const (
	ViewCurriculum   View = "curriculum"
	ViewPractice     View = "practice"
	ViewDashboard    View = "dashboard"
	ViewAchievements View = "achievements"
)

// Valid reports whether v names a known screen
func (v View) Valid() bool {
	switch v {
	case ViewCurriculum, ViewPractice, ViewDashboard, ViewAchievements:
		return true
	}
	return false
}

// Tab is an output panel of the practice screen
type Tab string

const (
	TabConsole Tab = "console"
	TabTests   Tab = "tests"
)

// Valid reports whether t names a known tab
func (t Tab) Valid() bool {
	return t == TabConsole || t == TabTests
}

// Console texts
const (
	ConsoleBanner  = "ESP8266 Academy - Console Output"
	RunningLine    = "🚀 Executando código..."
	NoOutputLine   = "✅ Código executado (sem saída)"
	FinishedLine   = "✅ Execução finalizada"
	TestingText    = "🧪 Executando testes..."
	HintPrefix     = "💡 Dica: "
	CurriculumDone = "🎉 Parabéns! Você completou todos os conteúdos disponíveis!"
)

// Default cosmetic delays
const (
	DefaultRunDelay  = 500 * time.Millisecond
	DefaultTestDelay = time.Second
)

// Toast is a transient notification
type Toast struct {
	Message string    `json:"message"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
}

// RunResult is the console after a simulated run
type RunResult struct {
	Console []domain.ConsoleLine `json:"console"`
	Device  domain.DeviceState   `json:"device"`
}

// TestResult is the outcome of grading the editor buffer
type TestResult struct {
	Report  grader.Report         `json:"report"`
	Panel   view.TestPanel        `json:"panel"`
	Outcome *engine.Outcome       `json:"outcome,omitempty"`
	Modal   *view.CompletionModal `json:"modal,omitempty"`
}

// App owns all learner-facing state. Methods are safe for concurrent use;
// mutations are serialised and cosmetic delays wait outside the lock.
type App struct {
	registry *curriculum.Registry
	engine   *engine.Engine
	store    *progress.Store
	sim      *simulator.Simulator
	grader   *grader.Grader
	logger   *slog.Logger
	now      func() time.Time
	intn     func(int) int

	runDelay  time.Duration
	testDelay time.Duration

	mu          sync.Mutex
	progress    *domain.UserProgress
	device      domain.DeviceState
	view        View
	tab         Tab
	lesson      *domain.Lesson
	code        string
	console     []domain.ConsoleLine
	report      *grader.Report
	testing     bool
	running     bool
	modal       *view.CompletionModal
	lastOutcome *engine.Outcome
	toast       *Toast

	runGen     uint64
	testGen    uint64
	cancelRun  context.CancelCauseFunc
	cancelTest context.CancelCauseFunc
}

// Option configures an App
type Option func(*App)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(a *App) {
		a.now = now
	}
}

// WithRand replaces the random source used to pick hints
func WithRand(intn func(int) int) Option {
	return func(a *App) {
		a.intn = intn
	}
}

// WithDelays sets the cosmetic delays before run and test output. Zero
// disables a delay.
func WithDelays(run, test time.Duration) Option {
	return func(a *App) {
		a.runDelay = run
		a.testDelay = test
	}
}

// WithSimulator replaces the execution simulator used for runs and grading
func WithSimulator(sim *simulator.Simulator) Option {
	return func(a *App) {
		a.sim = sim
	}
}

// New creates the application and loads the progress record
func New(ctx context.Context, registry *curriculum.Registry, store *progress.Store, eng *engine.Engine, opts ...Option) *App {
	a := &App{
		registry:  registry,
		engine:    eng,
		store:     store,
		logger:    slog.Default(),
		now:       time.Now,
		intn:      rand.IntN,
		runDelay:  DefaultRunDelay,
		testDelay: DefaultTestDelay,
		device:    domain.NewDeviceState(),
		view:      ViewCurriculum,
		tab:       TabConsole,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.sim == nil {
		a.sim = simulator.New()
	}
	a.grader = grader.New(a.sim)
	a.progress = store.Load(ctx)
	a.clearConsole()
	return a
}

// Registry returns the content store
func (a *App) Registry() *curriculum.Registry {
	return a.registry
}

// SwitchView changes the active screen
func (a *App) SwitchView(v View) error {
	if !v.Valid() {
		return fmt.Errorf("%w: unknown view %q", domain.ErrInvalidInput, v)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = v
	return nil
}

// SwitchTab changes the active output tab
func (a *App) SwitchTab(t Tab) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown tab %q", domain.ErrInvalidInput, t)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tab = t
	return nil
}

// StartLesson opens a lesson in the practice screen. Locked lessons are
// refused with ErrLessonLocked.
func (a *App) StartLesson(ctx context.Context, id string) (*domain.Lesson, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	l, ok := a.registry.FindLesson(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLessonNotFound, id)
	}
	if a.engine.IsLessonLocked(a.progress, id) {
		return nil, fmt.Errorf("%w: %s", domain.ErrLessonLocked, id)
	}
	a.openLesson(ctx, l)
	return l, nil
}

// openLesson loads l into the editor. Caller holds mu.
func (a *App) openLesson(ctx context.Context, l *domain.Lesson) {
	a.engine.StartLesson(ctx, a.progress, l.ID, a.now())
	a.supersedeRun()
	a.supersedeTests()
	a.lesson = l
	a.code = l.StarterCode
	a.clearConsole()
	a.report = nil
	a.modal = nil
	a.view = ViewPractice
	a.logger.Info("lesson started", "lesson", l.ID)
}

// SetCode replaces the editor buffer
func (a *App) SetCode(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.code = code
}

// Code returns the editor buffer
func (a *App) Code() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.code
}

// ResetCode restores the starter code of the active lesson and powers the
// device off
func (a *App) ResetCode() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lesson == nil {
		return domain.ErrNoActiveLesson
	}
	a.supersedeRun()
	a.supersedeTests()
	a.code = a.lesson.StarterCode
	a.clearConsole()
	a.report = nil
	a.device.SetPower(false)
	return nil
}

// ShowHint picks a random hint of the active lesson and shows it as a
// toast. Lessons without hints return an empty string.
func (a *App) ShowHint() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lesson == nil {
		return "", domain.ErrNoActiveLesson
	}
	if len(a.lesson.Hints) == 0 {
		return "", nil
	}
	hint := a.lesson.Hints[a.intn(len(a.lesson.Hints))]
	a.setToast(HintPrefix+hint, "info")
	return hint, nil
}

// RunCode simulates the editor buffer. A newer run supersedes one still
// waiting, which then returns ErrSuperseded.
func (a *App) RunCode(ctx context.Context) (RunResult, error) {
	a.mu.Lock()
	a.clearConsole()
	a.device.SetPower(true)
	a.appendConsole(RunningLine, domain.LineInfo)
	a.supersedeRun()
	a.runGen++
	gen := a.runGen
	waitCtx, cancel := context.WithCancelCause(ctx)
	a.cancelRun = cancel
	a.running = true
	code := a.code
	a.mu.Unlock()
	defer cancel(nil)

	if err := wait(waitCtx, a.runDelay); err != nil {
		a.finishRun(gen)
		return RunResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.runGen {
		return RunResult{}, domain.ErrSuperseded
	}
	a.running = false
	a.cancelRun = nil

	exec := a.sim.Run(code, a.device)
	a.device = exec.Device
	a.console = append(a.console, exec.Lines...)
	if !exec.Failed() {
		if len(exec.Output()) == 0 {
			a.appendConsole(NoOutputLine, domain.LineSuccess)
		}
		a.appendConsole(FinishedLine, domain.LineInfo)
	}
	a.logger.Debug("code executed", "lines", len(exec.Lines), "failed", exec.Failed())

	return RunResult{Console: a.consoleCopy(), Device: a.device.Clone()}, nil
}

func (a *App) finishRun(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.runGen {
		a.running = false
		a.cancelRun = nil
	}
}

// RunTests grades the editor buffer against the active lesson. When every
// test passes the completion is applied and the completion modal opens.
func (a *App) RunTests(ctx context.Context) (TestResult, error) {
	a.mu.Lock()
	if a.lesson == nil {
		a.mu.Unlock()
		return TestResult{}, domain.ErrNoActiveLesson
	}
	a.report = nil
	a.supersedeTests()
	a.testGen++
	gen := a.testGen
	waitCtx, cancel := context.WithCancelCause(ctx)
	a.cancelTest = cancel
	a.testing = true
	lesson, code := a.lesson, a.code
	a.mu.Unlock()
	defer cancel(nil)

	if err := wait(waitCtx, a.testDelay); err != nil {
		a.finishTests(gen)
		return TestResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.testGen {
		return TestResult{}, domain.ErrSuperseded
	}
	a.testing = false
	a.cancelTest = nil

	report := a.grader.Evaluate(code, lesson.TestCases)
	a.report = &report
	a.tab = TabTests
	result := TestResult{Report: report, Panel: view.Tests(&report)}

	a.logger.Info("tests evaluated",
		"lesson", lesson.ID,
		"passed", report.Passed,
		"total", report.Total,
		"points", report.EarnedPoints)

	if report.AllPassed {
		if out, ok := a.engine.Complete(ctx, a.progress, lesson.ID, a.now()); ok {
			modal := view.Modal(out)
			a.modal = &modal
			a.lastOutcome = &out
			result.Outcome = &out
			result.Modal = &modal
		}
	}
	return result, nil
}

func (a *App) finishTests(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gen == a.testGen {
		a.testing = false
		a.cancelTest = nil
	}
}

// CloseModal dismisses the completion modal
func (a *App) CloseModal() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.modal = nil
}

// GoToNextLesson closes the modal and opens the current lesson of the
// record. When the curriculum is finished it returns to the curriculum
// screen with a congratulation toast and a nil lesson.
func (a *App) GoToNextLesson(ctx context.Context) (*domain.Lesson, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.modal = nil
	finished := a.lastOutcome != nil && a.lastOutcome.CurriculumComplete && a.lastOutcome.LessonID == a.progress.CurrentLesson
	l, ok := a.registry.FindLesson(a.progress.CurrentLesson)
	if finished || !ok {
		a.view = ViewCurriculum
		a.setToast(CurriculumDone, "success")
		return nil, nil
	}
	a.openLesson(ctx, l)
	return l, nil
}

// Progress returns a copy of the progress record
func (a *App) Progress() *domain.UserProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progress.Clone()
}

// Device returns a copy of the simulated device
func (a *App) Device() domain.DeviceState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.device.Clone()
}

// Curriculum returns the module cards for the current record
func (a *App) Curriculum() []view.ModuleCard {
	a.mu.Lock()
	defer a.mu.Unlock()
	return view.Curriculum(a.registry, a.progress)
}

// Achievements returns the achievement cards for the current record
func (a *App) Achievements() []view.AchievementCard {
	a.mu.Lock()
	defer a.mu.Unlock()
	return view.Achievements(a.registry, a.progress)
}

// Dashboard returns the statistics view for the current record
func (a *App) Dashboard() view.Dashboard {
	a.mu.Lock()
	defer a.mu.Unlock()
	return view.BuildDashboard(a.registry, a.progress, a.now())
}

// LessonDetail is a lesson together with its state for the learner
type LessonDetail struct {
	Lesson    *domain.Lesson      `json:"lesson"`
	Header    view.PracticeHeader `json:"header"`
	ModuleID  string              `json:"module_id"`
	Locked    bool                `json:"locked"`
	Completed bool                `json:"completed"`
}

// Lesson looks up a lesson without opening it
func (a *App) Lesson(id string) (LessonDetail, error) {
	l, ok := a.registry.FindLesson(id)
	if !ok {
		return LessonDetail{}, fmt.Errorf("%w: %s", domain.ErrLessonNotFound, id)
	}
	detail := LessonDetail{Lesson: l, Header: view.Practice(l)}
	if m, ok := a.registry.ModuleOf(id); ok {
		detail.ModuleID = m.ID
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	detail.Locked = a.engine.IsLessonLocked(a.progress, id)
	detail.Completed = a.progress.HasCompleted(id)
	return detail, nil
}

// State is a snapshot of everything the screens render
type State struct {
	View         View                  `json:"view"`
	Tab          Tab                   `json:"tab"`
	Lesson       *view.PracticeHeader  `json:"lesson,omitempty"`
	Code         string                `json:"code"`
	Console      []domain.ConsoleLine  `json:"console"`
	Tests        view.TestPanel        `json:"tests"`
	Running      bool                  `json:"running"`
	Testing      bool                  `json:"testing"`
	Modal        *view.CompletionModal `json:"modal,omitempty"`
	Toast        *Toast                `json:"toast,omitempty"`
	Device       domain.DeviceState    `json:"device"`
	Progress     *domain.UserProgress  `json:"progress"`
	Backend      string                `json:"backend"`
	Degraded     bool                  `json:"degraded"`
	RepeatPolicy engine.RepeatPolicy   `json:"repeat_policy"`
}

// Snapshot returns a consistent copy of the application state
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := State{
		View:         a.view,
		Tab:          a.tab,
		Code:         a.code,
		Console:      a.consoleCopy(),
		Tests:        view.Tests(a.report),
		Running:      a.running,
		Testing:      a.testing,
		Device:       a.device.Clone(),
		Progress:     a.progress.Clone(),
		Backend:      a.store.Backend(),
		Degraded:     a.store.Degraded(),
		RepeatPolicy: a.engine.Policy(),
	}
	if a.testing {
		s.Tests.Summary = TestingText
	}
	if a.lesson != nil {
		h := view.Practice(a.lesson)
		s.Lesson = &h
	}
	if a.modal != nil {
		m := *a.modal
		s.Modal = &m
	}
	if a.toast != nil {
		t := *a.toast
		s.Toast = &t
	}
	return s
}

// supersedeRun cancels a waiting run. Caller holds mu.
func (a *App) supersedeRun() {
	if a.cancelRun != nil {
		a.cancelRun(domain.ErrSuperseded)
		a.cancelRun = nil
	}
	a.running = false
	a.runGen++
}

// supersedeTests cancels a waiting test run. Caller holds mu.
func (a *App) supersedeTests() {
	if a.cancelTest != nil {
		a.cancelTest(domain.ErrSuperseded)
		a.cancelTest = nil
	}
	a.testing = false
	a.testGen++
}

func (a *App) clearConsole() {
	a.console = []domain.ConsoleLine{{Text: ConsoleBanner, Kind: domain.LineInfo}}
}

func (a *App) appendConsole(text string, kind domain.LineKind) {
	a.console = append(a.console, domain.ConsoleLine{Text: text, Kind: kind})
}

func (a *App) consoleCopy() []domain.ConsoleLine {
	return append([]domain.ConsoleLine(nil), a.console...)
}

func (a *App) setToast(msg, kind string) {
	a.toast = &Toast{Message: msg, Kind: kind, At: a.now()}
}

// wait sleeps for d unless ctx ends first, returning the cancellation cause
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return context.Cause(ctx)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
