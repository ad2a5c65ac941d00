package domain

import (
	"testing"
	"time"
)

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{199, 1},
		{200, 2},
		{399, 2},
		{450, 3},
		{-10, 1},
	}

	for _, tt := range tests {
		if got := LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestNewUserProgress(t *testing.T) {
	now := time.Now()
	p := NewUserProgress("1.1", now)

	if p.CurrentLevel != 1 || p.TotalXP != 0 {
		t.Errorf("level/xp = %d/%d, want 1/0", p.CurrentLevel, p.TotalXP)
	}
	if p.CurrentLesson != "1.1" {
		t.Errorf("CurrentLesson = %q, want 1.1", p.CurrentLesson)
	}
	if p.LearningPath != "beginner" {
		t.Errorf("LearningPath = %q, want beginner", p.LearningPath)
	}
	if p.CompletedLessons == nil || p.BadgesEarned == nil {
		t.Error("slices should be non-nil so they encode as []")
	}
}

func TestUserProgress_MarkCompleted(t *testing.T) {
	p := NewUserProgress("1.1", time.Now())

	if !p.MarkCompleted("1.1") {
		t.Error("first MarkCompleted should add")
	}
	if p.MarkCompleted("1.1") {
		t.Error("second MarkCompleted should not add")
	}
	if len(p.CompletedLessons) != 1 {
		t.Errorf("CompletedLessons = %v, want one entry", p.CompletedLessons)
	}
	if !p.Completed().Has("1.1") {
		t.Error("Completed() should contain 1.1")
	}
}

func TestUserProgress_AddXP(t *testing.T) {
	p := NewUserProgress("1.1", time.Now())

	if p.AddXP(150) {
		t.Error("150 XP should not level up")
	}
	if !p.AddXP(75) {
		t.Error("225 XP should level up")
	}
	if p.CurrentLevel != 2 {
		t.Errorf("CurrentLevel = %d, want 2", p.CurrentLevel)
	}
}

func TestUserProgress_Normalize(t *testing.T) {
	p := &UserProgress{
		CurrentLevel:     7,
		TotalXP:          250,
		CompletedLessons: []string{"1.1", "1.2", "1.1"},
		BadgesEarned:     []string{"first-hello", "first-hello"},
		CurrentLesson:    "1.3",
	}
	p.Normalize()

	if p.CurrentLevel != 2 {
		t.Errorf("CurrentLevel = %d, want 2", p.CurrentLevel)
	}
	if len(p.CompletedLessons) != 2 || len(p.BadgesEarned) != 1 {
		t.Errorf("duplicates not removed: %v %v", p.CompletedLessons, p.BadgesEarned)
	}
	if p.LearningPath != "beginner" {
		t.Errorf("LearningPath = %q, want beginner", p.LearningPath)
	}
}

func TestUserProgress_LogCompletionBounded(t *testing.T) {
	p := NewUserProgress("1.1", time.Now())
	for i := 0; i < maxCompletionLog+10; i++ {
		p.LogCompletion(CompletionEntry{LessonID: "1.1", XP: i})
	}
	if len(p.CompletionLog) != maxCompletionLog {
		t.Fatalf("len(CompletionLog) = %d, want %d", len(p.CompletionLog), maxCompletionLog)
	}
	if p.CompletionLog[0].XP != 10 {
		t.Errorf("oldest kept XP = %d, want 10", p.CompletionLog[0].XP)
	}
}

func TestUserProgress_Clone(t *testing.T) {
	p := NewUserProgress("1.1", time.Now())
	p.MarkCompleted("1.1")
	c := p.Clone()
	c.MarkCompleted("1.2")
	c.AddBadge("first-hello")

	if len(p.CompletedLessons) != 1 || len(p.BadgesEarned) != 0 {
		t.Error("Clone should not share slices with the original")
	}
}

func TestTestCase_Kind(t *testing.T) {
	tests := []struct {
		name string
		tc   TestCase
		want CheckKind
	}{
		{"output lines", TestCase{MinOutputLines: 3}, CheckOutputLines},
		{"output contains", TestCase{OutputContains: []string{"x"}}, CheckOutputContains},
		{"code contains", TestCase{CodeContains: []string{"for"}}, CheckCodeContains},
		{"variables", TestCase{Variables: []string{"a"}}, CheckVariables},
		{"none", TestCase{}, CheckInvalid},
		{"several", TestCase{MinOutputLines: 1, Variables: []string{"a"}}, CheckInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tc.Kind(); got != tt.want {
				t.Errorf("Kind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeviceState_Clone(t *testing.T) {
	d := NewDeviceState()
	c := d.Clone()
	c.SetPin("gpio2", true)
	c.SetMemoryUsed(60)

	if *d.Pins["gpio2"].Value != 0 {
		t.Error("Clone should not share pin values")
	}
	if c.Memory.Free != 100 {
		t.Errorf("Free = %d, want 100", c.Memory.Free)
	}
	if d.Pins["gpio4"].Value != nil {
		t.Error("gpio4 should start unread")
	}
}
