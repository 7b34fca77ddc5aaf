package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JonMunkholm/printshelf/internal/config"
	"github.com/JonMunkholm/printshelf/internal/profile"
	"github.com/JonMunkholm/printshelf/internal/store"
)

var (
	ErrInvalidPackage = errors.New("invalid package")
	ErrExtractTimeout = errors.New("extraction timed out")
	ErrInvalidID      = errors.New("invalid model id")
	ErrInvalidField   = errors.New("invalid field value")
)

// ModelRepository is the persistence the service needs. store.ModelStore
// implements it.
type ModelRepository interface {
	Create(ctx context.Context, m *store.Model) error
	Get(ctx context.Context, id uuid.UUID) (*store.Model, error)
	List(ctx context.Context, opts store.ListOptions) ([]store.Model, error)
	Update(ctx context.Context, id uuid.UUID, fields map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementStat(ctx context.Context, id uuid.UUID, stat string) error
}

// ModelInput carries the user-supplied fields of a new model.
type ModelInput struct {
	Title       string
	Description string
	Category    string
	License     string
	Tags        []string
}

// editableFields lists what callers may change through UpdateModel, with the
// JSON type each must carry.
var editableFields = map[string]string{
	"title":       "string",
	"description": "string",
	"category":    "string",
	"license":     "string",
	"tags":        "strings",
	"featured":    "bool",
}

// Service provides the model library's business logic.
type Service struct {
	repo      ModelRepository
	files     *FileStore
	limiter   *UploadLimiter
	previews  *lru.Cache[string, PreviewResult]
	extractor *profile.Extractor
	opts      []profile.Option

	extractTimeout time.Duration
	maxFileSize    int64
	logger         *slog.Logger
}

// NewService wires the service from configuration.
func NewService(repo ModelRepository, cfg *config.Config) (*Service, error) {
	files, err := NewFileStore(cfg.Upload.Dir, cfg.Upload.MaxFileSize)
	if err != nil {
		return nil, err
	}
	previews, err := lru.New[string, PreviewResult](cfg.Cache.PreviewEntries)
	if err != nil {
		return nil, fmt.Errorf("preview cache: %w", err)
	}

	logger := slog.Default().With("component", "core")
	opts := []profile.Option{
		profile.WithMaxEntrySize(cfg.Profile.MaxEntrySize),
		profile.WithLogger(slog.Default().With("component", "profile")),
	}

	return &Service{
		repo:           repo,
		files:          files,
		limiter:        NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		previews:       previews,
		extractor:      profile.NewExtractor(opts...),
		opts:           opts,
		extractTimeout: cfg.Profile.ExtractTimeout,
		maxFileSize:    cfg.Upload.MaxFileSize,
		logger:         logger,
	}, nil
}

// ParseID parses a model id from a URL or form value.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// ValidateUpload runs the structural validator on a stored package.
func (s *Service) ValidateUpload(path string) error {
	v := profile.Validate(path, s.opts...)
	if !v.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidPackage, v.Reason)
	}
	return nil
}

// CreateModel stores an uploaded package, extracts its print profile and
// preview, and records it. An invalid package is rejected and its file
// removed; extraction is best effort.
func (s *Service) CreateModel(ctx context.Context, in ModelInput, filename string, r io.Reader) (*store.Model, error) {
	if err := checkExtension(filename); err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	sf, err := s.files.Save(r)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With("file", sf.Name, "upload_name", filename, "client_ip", ClientIPFromContext(ctx))

	if err := s.ValidateUpload(sf.Path); err != nil {
		s.files.Remove(sf.Name)
		logger.Info("upload rejected", "error", err)
		return nil, err
	}

	m := &store.Model{
		Description: in.Description,
		Category:    in.Category,
		License:     in.License,
		Tags:        cleanTags(in.Tags),
		Filename:    sf.Name,
		FileSize:    sf.Size,
	}

	res, err := s.extract(ctx, sf.Path)
	if err != nil {
		logger.Warn("profile extraction abandoned", "error", err)
	} else {
		m.PrintSettings = res.Settings
		m.ModelCount = res.ModelCount
		if res.HasThumbnail {
			m.Thumbnail = s.saveThumbnail(sf, res.ThumbnailEntry, logger)
		}
	}
	m.Title = chooseTitle(in.Title, res, filename)

	if err := s.repo.Create(ctx, m); err != nil {
		s.files.Remove(sf.Name)
		s.files.RemoveThumbnail(m.Thumbnail)
		return nil, err
	}

	logger.Info("model created",
		"model_id", m.ID,
		"settings", len(m.PrintSettings),
		"objects", m.ModelCount,
		"thumbnail", m.Thumbnail != "",
	)
	return m, nil
}

func (s *Service) saveThumbnail(sf StoredFile, entry string, logger *slog.Logger) string {
	name := thumbnailName(sf.Name, entry)
	out, err := s.files.ThumbnailPath(name)
	if err != nil {
		return ""
	}
	if !profile.ExtractThumbnailFile(sf.Path, out, s.opts...) {
		logger.Warn("thumbnail extraction failed", "entry", entry)
		return ""
	}
	return name
}

// extract runs the pipeline, giving up after the configured timeout. An
// abandoned run finishes in the background and its result is dropped.
func (s *Service) extract(ctx context.Context, path string) (*profile.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	done := make(chan *profile.Result, 1)
	go func() {
		done <- s.extractor.Extract(path)
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrExtractTimeout, ctx.Err())
	}
}

// GetModel returns one model.
func (s *Service) GetModel(ctx context.Context, id uuid.UUID) (*store.Model, error) {
	return s.repo.Get(ctx, id)
}

// ListModels returns models newest first.
func (s *Service) ListModels(ctx context.Context, opts store.ListOptions) ([]store.Model, error) {
	return s.repo.List(ctx, opts)
}

// UpdateModel applies a partial edit decoded from JSON.
func (s *Service) UpdateModel(ctx context.Context, id uuid.UUID, fields map[string]any) (*store.Model, error) {
	clean, err := sanitizeUpdate(fields)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, clean); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// DeleteModel removes the record and then its files.
func (s *Service) DeleteModel(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.Remove(m.Filename); err != nil {
		s.logger.Warn("remove package file", "file", m.Filename, "error", err)
	}
	if err := s.files.RemoveThumbnail(m.Thumbnail); err != nil {
		s.logger.Warn("remove thumbnail", "file", m.Thumbnail, "error", err)
	}
	return nil
}

// RecordStat bumps the downloads, likes or views counter.
func (s *Service) RecordStat(ctx context.Context, id uuid.UUID, stat string) error {
	return s.repo.IncrementStat(ctx, id, stat)
}

// PackagePath returns the on-disk location of a model's package.
func (s *Service) PackagePath(m *store.Model) (string, error) {
	return s.files.Path(m.Filename)
}

// ThumbnailPath returns the on-disk location of a stored preview.
func (s *Service) ThumbnailPath(name string) (string, error) {
	return s.files.ThumbnailPath(name)
}

// MaxFileSize is the largest accepted upload in bytes.
func (s *Service) MaxFileSize() int64 {
	return s.maxFileSize
}

// UploadLimiterStatus reports upload slot usage.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight uploads finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func checkExtension(filename string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".3mf") {
		return fmt.Errorf("%w: %s", ErrInvalidPackage, profile.ReasonBadExtension)
	}
	return nil
}

// chooseTitle prefers the user's title, then the package's Title metadata,
// then the upload name without extension.
func chooseTitle(given string, res *profile.Result, filename string) string {
	if t := strings.TrimSpace(given); t != "" {
		return t
	}
	if res != nil {
		if t := strings.TrimSpace(res.Metadata["Title"]); t != "" {
			return t
		}
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// sanitizeUpdate checks field names and JSON types and converts tags to a
// cleaned []string.
func sanitizeUpdate(fields map[string]any) (map[string]any, error) {
	if len(fields) == 0 {
		return nil, store.ErrNoFields
	}
	clean := make(map[string]any, len(fields))
	for name, val := range fields {
		kind, ok := editableFields[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", store.ErrUnknownColumn, name)
		}
		switch kind {
		case "string":
			str, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidField, name)
			}
			if name == "title" {
				str = strings.TrimSpace(str)
				if str == "" {
					return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidField)
				}
			}
			clean[name] = str
		case "bool":
			b, ok := val.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be true or false", ErrInvalidField, name)
			}
			clean[name] = b
		case "strings":
			tags, err := toStrings(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s %v", ErrInvalidField, name, err)
			}
			clean[name] = cleanTags(tags)
		}
	}
	return clean, nil
}

func toStrings(val any) ([]string, error) {
	switch v := val.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, errors.New("must be a list of strings")
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, errors.New("must be a list of strings")
	}
}
