// Package store persists model records in PostgreSQL.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/printshelf/internal/profile"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when no model has the requested id.
var ErrNotFound = errors.New("model not found")

// ErrUnknownStat is returned for counters outside downloads, likes and views.
var ErrUnknownStat = errors.New("unknown stat")

// DefaultListLimit applies when ListOptions.Limit is not positive.
const DefaultListLimit = 50

// Model is one uploaded 3MF project.
type Model struct {
	ID            uuid.UUID        `json:"id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Tags          []string         `json:"tags"`
	Filename      string           `json:"filename"`
	FileSize      int64            `json:"filesize"`
	Thumbnail     string           `json:"thumbnail,omitempty"`
	License       string           `json:"license"`
	PrintSettings profile.Settings `json:"print_settings"`
	ModelCount    int              `json:"model_count"`
	Downloads     int64            `json:"downloads"`
	Likes         int64            `json:"likes"`
	Views         int64            `json:"views"`
	Featured      bool             `json:"featured"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ListOptions filters and pages List.
type ListOptions struct {
	Category string
	Query    string
	Featured *bool
	Limit    int
	Offset   int
}

const modelColumns = `id, title, description, category, tags, filename, filesize, thumbnail,
	license, print_settings, model_count, downloads, likes, views, featured, created_at, updated_at`

// ModelStore implements model persistence over a pgx pool.
type ModelStore struct {
	pool *pgxpool.Pool
}

// New returns a store backed by pool.
func New(pool *pgxpool.Pool) *ModelStore {
	return &ModelStore{pool: pool}
}

// EnsureSchema creates the models table and its indexes if missing.
func (s *ModelStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Create inserts m, assigning an id when m.ID is zero. Timestamps are filled
// from the database.
func (s *ModelStore) Create(ctx context.Context, m *Model) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	tags, settings, err := encodeJSONColumns(m)
	if err != nil {
		return err
	}

	const query = `INSERT INTO models
		(id, title, description, category, tags, filename, filesize, thumbnail,
		 license, print_settings, model_count, featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	err = s.pool.QueryRow(ctx, query,
		m.ID, m.Title, m.Description, m.Category, tags, m.Filename, m.FileSize, m.Thumbnail,
		m.License, settings, m.ModelCount, m.Featured,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert model: %w", err)
	}
	return nil
}

// Get returns the model with id.
func (s *ModelStore) Get(ctx context.Context, id uuid.UUID) (*Model, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+modelColumns+" FROM models WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanModel)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}
	return &m, nil
}

// List returns models newest first.
func (s *ModelStore) List(ctx context.Context, opts ListOptions) ([]Model, error) {
	wb := NewWhereBuilder()
	wb.Add("category", opts.Category)
	wb.AddBool("featured", opts.Featured)
	wb.AddSearch(opts.Query, "title", "description")
	where, args := wb.Build()

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	offset := max(opts.Offset, 0)

	query := "SELECT " + modelColumns + " FROM models" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	models, err := pgx.CollectRows(rows, scanModel)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return models, nil
}

// Update changes the named columns of one model. Keys are column names; tags
// and print_settings are stored as JSON.
func (s *ModelStore) Update(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	query, args, err := buildUpdate(id, fields)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the model row. Files are the caller's concern.
func (s *ModelStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM models WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementStat adds one to the downloads, likes or views counter.
func (s *ModelStore) IncrementStat(ctx context.Context, id uuid.UUID, stat string) error {
	query, err := buildIncrement(stat)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment %s: %w", stat, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanModel(row pgx.CollectableRow) (Model, error) {
	var (
		m        Model
		tags     []byte
		settings []byte
	)
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.Category, &tags, &m.Filename, &m.FileSize, &m.Thumbnail,
		&m.License, &settings, &m.ModelCount, &m.Downloads, &m.Likes, &m.Views, &m.Featured,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return Model{}, err
	}
	if err := json.Unmarshal(tags, &m.Tags); err != nil {
		return Model{}, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal(settings, &m.PrintSettings); err != nil {
		return Model{}, fmt.Errorf("decode print_settings: %w", err)
	}
	return m, nil
}

func encodeJSONColumns(m *Model) ([]byte, []byte, error) {
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	settings := m.PrintSettings
	if settings == nil {
		settings = profile.Settings{}
	}
	tb, err := json.Marshal(tags)
	if err != nil {
		return nil, nil, fmt.Errorf("encode tags: %w", err)
	}
	sb, err := json.Marshal(settings)
	if err != nil {
		return nil, nil, fmt.Errorf("encode print_settings: %w", err)
	}
	return tb, sb, nil
}
