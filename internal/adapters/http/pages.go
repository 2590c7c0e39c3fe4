package web

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"

	"console/internal/adapters/i18n"
	"console/internal/application/state"
	"console/internal/domain/locale"
	"console/internal/domain/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

// pageNames lists the views rendered inside layout.html.
var pageNames = []string{
	"initialize.html",
	"login.html",
	"member.html",
	"members.html",
	"not_found.html",
	"forbidden.html",
}

var funcs = template.FuncMap{
	// dict builds translation data: {{.Tf "id" (dict "Key" value)}}
	"dict": func(kv ...any) (map[string]any, error) {
		if len(kv)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		m := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
			}
			m[key] = kv[i+1]
		}
		return m, nil
	},
}

type pages struct {
	byName map[string]*template.Template
}

func parsePages() (*pages, error) {
	p := &pages{byName: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tpl, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFiles, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		p.byName[name] = tpl
	}
	return p, nil
}

type displayKey struct{}

func withDisplay(ctx context.Context, d *i18n.Display) context.Context {
	return context.WithValue(ctx, displayKey{}, d)
}

// displayFrom returns the page-load display locale.
func displayFrom(ctx context.Context) *i18n.Display {
	d, _ := ctx.Value(displayKey{}).(*i18n.Display)
	return d
}

// page is the data every template receives. Display is embedded so
// templates translate with {{.T "id"}}.
type page struct {
	*i18n.Display
	Lang      string
	Session   session.Session
	Action    session.PendingAction
	CSRFField template.HTML
	Data      map[string]any
}

// newPage assembles the template data for r. The pending action is
// consumed here: whichever view renders first shows it.
func newPage(r *http.Request, data map[string]any) page {
	display := displayFrom(r.Context())
	p := page{
		Display:   display,
		Lang:      locale.BCP47(display.Locale()).String(),
		CSRFField: csrf.TemplateField(r),
		Data:      data,
	}
	if store, ok := state.FromContext(r.Context()); ok {
		p.Session = store.Session()
		p.Action, _ = store.TakePendingAction()
	}
	return p
}

// render executes a page into a buffer so a template error never leaves a
// half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	tpl, ok := s.pages.byName[name]
	if !ok {
		internalError(w, fmt.Errorf("unknown page %q", name))
		return
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, newPage(r, data)); err != nil {
		internalError(w, fmt.Errorf("render %s: %w", name, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err.Error())
	}
}
