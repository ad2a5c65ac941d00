// Package grader scores submitted source against a lesson's test cases
// using the simulated output and plain substring checks. It is
// intentionally shallow: comments and string literals satisfy the code
// checks just as real statements do.
package grader

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/simulator"
)

// Result is the outcome of one test case
type Result struct {
	Description string `json:"description"`
	Points      int    `json:"points"`
	Passed      bool   `json:"passed"`
	Feedback    string `json:"feedback"`
}

// Report aggregates the results of all test cases
type Report struct {
	Results      []Result `json:"results"`
	Passed       int      `json:"passed"`
	Total        int      `json:"total"`
	EarnedPoints int      `json:"earned_points"`
	TotalPoints  int      `json:"total_points"`
	AllPassed    bool     `json:"all_passed"`
}

// Score returns the earned share of points as a percentage
func (r Report) Score() int {
	if r.TotalPoints == 0 {
		return 0
	}
	return r.EarnedPoints * 100 / r.TotalPoints
}

// Grader evaluates test cases
type Grader struct {
	sim *simulator.Simulator
}

// New creates a grader backed by the given simulator
func New(sim *simulator.Simulator) *Grader {
	return &Grader{sim: sim}
}

// Evaluate runs every test case against the source. Output checks use the
// output-kind lines of a fresh simulation.
func (g *Grader) Evaluate(source string, tests []domain.TestCase) Report {
	exec := g.sim.Run(source, domain.NewDeviceState())
	output := exec.Output()

	report := Report{
		Results: make([]Result, 0, len(tests)),
		Total:   len(tests),
	}
	for _, tc := range tests {
		r := g.check(source, output, tc)
		report.Results = append(report.Results, r)
		report.TotalPoints += tc.Points
		if r.Passed {
			report.Passed++
			report.EarnedPoints += tc.Points
		}
	}
	report.AllPassed = report.Total > 0 && report.Passed == report.Total
	return report
}

func (g *Grader) check(source string, output []string, tc domain.TestCase) (res Result) {
	res = Result{Description: tc.Description, Points: tc.Points}
	defer func() {
		if r := recover(); r != nil {
			res.Passed = false
			res.Feedback = fmt.Sprintf("❌ Erro no teste: %v", r)
		}
	}()

	switch tc.Kind() {
	case domain.CheckOutputLines:
		res.Passed, res.Feedback = checkOutputLines(output, tc.MinOutputLines)
	case domain.CheckOutputContains:
		res.Passed, res.Feedback = checkOutputContains(output, tc.OutputContains)
	case domain.CheckCodeContains:
		res.Passed, res.Feedback = checkCodeContains(source, tc.CodeContains)
	case domain.CheckVariables:
		res.Passed, res.Feedback = checkVariables(source, tc.Variables)
	default:
		res.Feedback = "❌ Teste sem verificação definida"
	}
	return res
}

func checkOutputLines(output []string, want int) (bool, string) {
	if len(output) >= want {
		return true, fmt.Sprintf("✅ Código produz %d linhas de saída", len(output))
	}
	return false, fmt.Sprintf("❌ Esperado pelo menos %d linhas, encontrado %d", want, len(output))
}

func checkOutputContains(output []string, substrings []string) (bool, string) {
	joined := strings.ToLower(strings.Join(output, "\n"))
	for _, s := range substrings {
		if !strings.Contains(joined, strings.ToLower(s)) {
			return false, fmt.Sprintf("❌ Saída deve conter %q", s)
		}
	}
	return true, fmt.Sprintf("✅ Saída contém %s", quoteAll(substrings))
}

func checkCodeContains(source string, substrings []string) (bool, string) {
	for _, s := range substrings {
		if !strings.Contains(source, s) {
			return false, "❌ Código deve conter: " + strings.Join(substrings, ", ")
		}
	}
	return true, "✅ Código contém elementos necessários"
}

func checkVariables(source string, names []string) (bool, string) {
	for _, name := range names {
		if !strings.Contains(source, name+"=") && !strings.Contains(source, name+" =") {
			return false, "❌ Defina as variáveis: " + strings.Join(names, ", ")
		}
	}
	return true, "✅ Variáveis corretas definidas"
}

func quoteAll(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
