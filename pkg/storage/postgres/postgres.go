// Package postgres provides a PostgreSQL implementation of storage.ThreadStore
// and storage.ModelStore. It uses pgx/v5 for connection pooling and JSONB
// arrays for the per-side message logs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/storage"
)

// Store is a PostgreSQL-backed thread and model store.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.ThreadStore = (*Store)(nil)
	_ storage.ModelStore  = (*Store)(nil)
)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// GetThread retrieves a thread by id, scoped to the context owner if set.
func (s *Store) GetThread(ctx context.Context, id string) (*api.Thread, error) {
	query := `
		SELECT id, owner_id, category, initial_context, selected_models,
		       side1_messages, side2_messages, created_at, updated_at
		FROM threads
		WHERE id = $1
	`
	args := []any{id}
	if owner := storage.GetOwner(ctx); owner != "" {
		query += " AND owner_id = $2"
		args = append(args, owner)
	}

	var th api.Thread
	var initialJSON *[]byte
	var side1JSON, side2JSON []byte

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&th.ID, &th.OwnerID, &th.Category, &initialJSON, &th.SelectedModels,
		&side1JSON, &side2JSON, &th.CreatedAt, &th.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}

	if initialJSON != nil {
		var ic api.InitialContext
		if err := json.Unmarshal(*initialJSON, &ic); err != nil {
			return nil, fmt.Errorf("unmarshaling initial context: %w", err)
		}
		th.InitialContext = &ic
	}
	if err := json.Unmarshal(side1JSON, &th.Side1Messages); err != nil {
		return nil, fmt.Errorf("unmarshaling side1 messages: %w", err)
	}
	if err := json.Unmarshal(side2JSON, &th.Side2Messages); err != nil {
		return nil, fmt.Errorf("unmarshaling side2 messages: %w", err)
	}

	return &th, nil
}

// CreateOrAssign upserts the thread row. On conflict only fields that are
// still empty are filled in, so the model assignment is written once. A row
// owned by someone else is left untouched.
func (s *Store) CreateOrAssign(ctx context.Context, id string, modelIDs []string, ownerID, category string, initial *api.InitialContext) error {
	if modelIDs == nil {
		modelIDs = []string{}
	}

	var initialJSON []byte
	if initial != nil {
		var err error
		initialJSON, err = json.Marshal(initial)
		if err != nil {
			return fmt.Errorf("marshaling initial context: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO threads (id, owner_id, category, initial_context, selected_models, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			selected_models = CASE
				WHEN cardinality(threads.selected_models) = 0 THEN EXCLUDED.selected_models
				ELSE threads.selected_models
			END,
			owner_id        = COALESCE(NULLIF(threads.owner_id, ''), EXCLUDED.owner_id),
			category        = COALESCE(NULLIF(threads.category, ''), EXCLUDED.category),
			initial_context = COALESCE(threads.initial_context, EXCLUDED.initial_context),
			updated_at      = now()
		WHERE threads.owner_id = '' OR EXCLUDED.owner_id = '' OR threads.owner_id = EXCLUDED.owner_id
	`, id, ownerID, category, nullJSON(initialJSON), modelIDs)
	if err != nil {
		return fmt.Errorf("upserting thread: %w", err)
	}
	return nil
}

// AppendMessage appends msg to the JSONB log of the side modelID answers on.
// Side resolution and the append happen in one statement.
func (s *Store) AppendMessage(ctx context.Context, id, modelID string, msg api.Message) error {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	query := `
		UPDATE threads SET
			side1_messages = CASE WHEN selected_models[1] = $2
				THEN side1_messages || jsonb_build_array($3::jsonb) ELSE side1_messages END,
			side2_messages = CASE WHEN selected_models[2] = $2 AND selected_models[1] <> $2
				THEN side2_messages || jsonb_build_array($3::jsonb) ELSE side2_messages END,
			updated_at = now()
		WHERE id = $1 AND (selected_models[1] = $2 OR selected_models[2] = $2)
	`
	args := []any{id, modelID, string(msgJSON)}
	if owner := storage.GetOwner(ctx); owner != "" {
		query += " AND owner_id = $4"
		args = append(args, owner)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("appending message: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: tell a vanished thread apart from a wrong model.
	if _, err := s.GetThread(ctx, id); err != nil {
		return err
	}
	return storage.ErrModelNotAssigned
}

// ListModels returns all directory records ordered by model id.
func (s *Store) ListModels(ctx context.Context) ([]api.ModelConfig, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT model, base_url, api_key, response_format, format_options, enabled
		FROM models
		ORDER BY model
	`)
	if err != nil {
		return nil, fmt.Errorf("querying models: %w", err)
	}
	defer rows.Close()

	var out []api.ModelConfig
	for rows.Next() {
		var m api.ModelConfig
		var format string
		var optionsJSON *[]byte
		if err := rows.Scan(&m.Model, &m.BaseURL, &m.APIKey, &format, &optionsJSON, &m.Enabled); err != nil {
			return nil, fmt.Errorf("scanning model: %w", err)
		}
		m.ResponseFormat = api.ResponseFormat(format)
		if optionsJSON != nil {
			var opts api.FormatOptions
			if err := json.Unmarshal(*optionsJSON, &opts); err != nil {
				return nil, fmt.Errorf("unmarshaling format options for %s: %w", m.Model, err)
			}
			m.FormatOptions = &opts
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating models: %w", err)
	}
	return out, nil
}

// UpsertModel inserts or replaces the directory record for cfg.Model.
func (s *Store) UpsertModel(ctx context.Context, cfg api.ModelConfig) error {
	var optionsJSON []byte
	if cfg.FormatOptions != nil {
		var err error
		optionsJSON, err = json.Marshal(cfg.FormatOptions)
		if err != nil {
			return fmt.Errorf("marshaling format options: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO models (model, base_url, api_key, response_format, format_options, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (model) DO UPDATE SET
			base_url        = EXCLUDED.base_url,
			api_key         = EXCLUDED.api_key,
			response_format = EXCLUDED.response_format,
			format_options  = EXCLUDED.format_options,
			enabled         = EXCLUDED.enabled
	`, cfg.Model, cfg.BaseURL, cfg.APIKey, string(cfg.ResponseFormat), nullJSON(optionsJSON), cfg.Enabled)
	if err != nil {
		return fmt.Errorf("upserting model %s: %w", cfg.Model, err)
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	str := string(b)
	return &str
}
