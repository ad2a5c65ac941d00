package daemon

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/felixgeelhaar/academy/internal/academy"
	"github.com/felixgeelhaar/academy/internal/domain"
	"github.com/felixgeelhaar/academy/internal/view"
)

//go:embed templates/*.html
var templateFS embed.FS

// pageData is everything the HTML page renders
type pageData struct {
	State        academy.State
	Modules      []view.ModuleCard
	Achievements []view.AchievementCard
	Dashboard    view.Dashboard
}

func parsePage() (*template.Template, error) {
	funcs := template.FuncMap{
		"percent": func(ratio float64) int { return int(ratio * 100) },
		"lineClass": func(k domain.LineKind) string {
			return "output-line " + string(k)
		},
		"active": func(a, b string) string {
			if a == b {
				return "active"
			}
			return ""
		},
	}
	return template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/index.html")
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		State:        s.app.Snapshot(),
		Modules:      s.app.Curriculum(),
		Achievements: s.app.Achievements(),
		Dashboard:    s.app.Dashboard(),
	}

	var buf bytes.Buffer
	if err := s.page.Execute(&buf, data); err != nil {
		s.jsonError(w, http.StatusInternalServerError, "failed to render page", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
