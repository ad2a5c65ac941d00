// Package simulator pretends to run MicroPython source. It recognises a
// handful of line shapes and produces canned console output and device
// changes. Nothing is ever executed.
package simulator

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/academy/internal/domain"
)

// Console texts
const (
	FallbackPrint   = "Saída do programa"
	GPIOSetupLine   = "📌 Configurando pinos GPIO..."
	GPIOReadyLine   = "📋 GPIO configurado com sucesso"
	LEDOnLine       = "💡 LED ligado"
	LEDOffLine      = "💡 LED desligado"
	SleepLine       = "⏱️ Aguardando..."
	placeholderText = "[valor]"
	baseMemoryUsed  = 45
	memoryJitter    = 20
)

// Execution is the outcome of a simulated run
type Execution struct {
	Lines  []domain.ConsoleLine `json:"lines"`
	Device domain.DeviceState   `json:"device"`
}

// Output returns the text of output-kind lines only
func (e Execution) Output() []string {
	var out []string
	for _, l := range e.Lines {
		if l.Kind == domain.LineOutput {
			out = append(out, l.Text)
		}
	}
	return out
}

// Failed reports whether the run ended with an error line
func (e Execution) Failed() bool {
	for _, l := range e.Lines {
		if l.Kind == domain.LineError {
			return true
		}
	}
	return false
}

// Simulator maps source lines to console output
type Simulator struct {
	literalPrint *regexp.Regexp
	fstringPrint *regexp.Regexp
	placeholder  *regexp.Regexp
	intn         func(n int) int
}

// Option configures a Simulator
type Option func(*Simulator)

// WithRand replaces the random source used for memory jitter
func WithRand(intn func(n int) int) Option {
	return func(s *Simulator) {
		s.intn = intn
	}
}

// New creates a simulator
func New(opts ...Option) *Simulator {
	s := &Simulator{
		literalPrint: regexp.MustCompile("print\\(['\"`]([^'\"`]+)['\"`]\\)"),
		fstringPrint: regexp.MustCompile("print\\(f?['\"`]([^'\"`]+)['\"`]\\)"),
		placeholder:  regexp.MustCompile(`\{[^}]+\}`),
		intn:         rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run simulates the source against a copy of the given device state. It
// never panics; an internal fault becomes a single error line.
func (s *Simulator) Run(source string, device domain.DeviceState) (exec Execution) {
	dev := device.Clone()
	defer func() {
		if r := recover(); r != nil {
			exec = Execution{
				Lines:  []domain.ConsoleLine{{Text: fmt.Sprintf("❌ Erro: %v", r), Kind: domain.LineError}},
				Device: dev,
			}
		}
	}()

	dev.SetPower(true)
	dev.SetMemoryUsed(baseMemoryUsed + s.intn(memoryJitter))

	var lines []domain.ConsoleLine
	for _, raw := range strings.Split(source, "\n") {
		lines = append(lines, s.simulateLine(strings.TrimSpace(raw), &dev)...)
	}
	return Execution{Lines: lines, Device: dev}
}

func (s *Simulator) simulateLine(line string, dev *domain.DeviceState) []domain.ConsoleLine {
	switch {
	case strings.HasPrefix(line, "print("):
		return []domain.ConsoleLine{output(s.printText(line))}
	case strings.HasPrefix(line, "from machine import Pin"):
		return []domain.ConsoleLine{
			output(GPIOSetupLine),
			{Text: GPIOReadyLine, Kind: domain.LineInfo},
		}
	case strings.Contains(line, "led.on()"):
		dev.SetPin("gpio2", true)
		return []domain.ConsoleLine{output(LEDOnLine)}
	case strings.Contains(line, "led.off()"):
		dev.SetPin("gpio2", false)
		return []domain.ConsoleLine{output(LEDOffLine)}
	case strings.Contains(line, "time.sleep("):
		return []domain.ConsoleLine{output(SleepLine)}
	}
	return nil
}

func (s *Simulator) printText(line string) string {
	if m := s.literalPrint.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := s.fstringPrint.FindStringSubmatch(line); m != nil {
		return s.placeholder.ReplaceAllString(m[1], placeholderText)
	}
	return FallbackPrint
}

func output(text string) domain.ConsoleLine {
	return domain.ConsoleLine{Text: text, Kind: domain.LineOutput}
}
