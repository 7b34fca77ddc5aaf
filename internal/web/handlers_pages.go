package web

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/printshelf/internal/core"
	"github.com/JonMunkholm/printshelf/internal/logging"
	"github.com/JonMunkholm/printshelf/internal/profile"
	"github.com/JonMunkholm/printshelf/internal/web/templates"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	models, err := s.service.ListModels(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render(w, r, templates.Page("Models", templates.ModelList(models)))
}

// handleModelPage shows one model and counts the view.
func (s *Server) handleModelPage(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	m, err := s.service.GetModel(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.RecordStat(r.Context(), id, "views"); err != nil {
		logging.FromContext(r.Context()).Warn("record view", "model_id", id, "error", err)
	}

	render(w, r, templates.Page(m.Title, templates.ModelDetail(m, profile.Summarize(m.PrintSettings))))
}

func render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "path", r.URL.Path, "error", err)
	}
}
