package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/printshelf/internal/core"
	"github.com/JonMunkholm/printshelf/internal/store"
)

// formMemory is how much of a multipart body is kept in memory before
// spilling to temp files.
const formMemory = 8 << 20

// formOverhead leaves room for the non-file fields and multipart framing.
const formOverhead = 1 << 20

// handleListModels returns models newest first, filtered by query parameters.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err, http.StatusBadRequest)
		return
	}
	models, err := s.service.ListModels(r.Context(), opts)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if models == nil {
		models = []store.Model{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, m)
}

// handleCreateModel accepts a multipart upload with a "file" part and
// optional title, description, category, license and tags fields.
func (s *Server) handleCreateModel(w http.ResponseWriter, r *http.Request) {
	file, header, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	in := core.ModelInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		License:     r.FormValue("license"),
		Tags:        splitTags(r.FormValue("tags")),
	}

	ctx := core.ContextWithClientIP(r.Context(), clientIP(r))
	m, err := s.service.CreateModel(ctx, in, header.Filename, file)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/models/"+m.ID.String())
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, formOverhead)
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidField, err), http.StatusBadRequest)
		return
	}

	m, err := s.service.UpdateModel(r.Context(), id, fields)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.DeleteModel(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDownload counts the download and streams the package.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
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
	path, err := s.service.PackagePath(m)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.service.RecordStat(r.Context(), id, "downloads"); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "model/3mf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(m)))
	http.ServeFile(w, r, path)
}

// handleThumbnail serves a stored preview image by file name.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := s.service.ThumbnailPath(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

// readUpload bounds the body and returns the "file" part. It writes the
// error response itself when ok is false.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+formOverhead)

	if err := r.ParseMultipartForm(formMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			writeError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
		} else {
			writeError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		}
		return nil, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return nil, nil, false
	}
	return file, header, true
}

func listOptions(r *http.Request) (store.ListOptions, error) {
	q := r.URL.Query()
	opts := store.ListOptions{
		Category: strings.TrimSpace(q.Get("category")),
		Query:    strings.TrimSpace(q.Get("q")),
		Limit:    store.DefaultListLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return opts, fmt.Errorf("%w: limit must be between 1 and 200", core.ErrInvalidField)
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("%w: offset must be a non-negative integer", core.ErrInvalidField)
		}
		opts.Offset = n
	}
	if v := q.Get("featured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("%w: featured must be true or false", core.ErrInvalidField)
		}
		opts.Featured = &b
	}
	return opts, nil
}

// splitTags splits a comma-separated form value.
func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// downloadName is the title as a safe file name.
func downloadName(m *store.Model) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\', r == '"', r < 0x20:
			return '_'
		}
		return r
	}, strings.TrimSpace(m.Title))
	if name == "" {
		name = m.ID.String()
	}
	return name + ".3mf"
}
