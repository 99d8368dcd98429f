package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iEdgir01/traffic-manager/models"
)

const uniqueViolation = "23505"

const routeColumns = `id, name, start_lat, start_lng, end_lat, end_lng, last_normal_time, last_state, historical_times, priority`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func scanRoute(row pgx.Row) (*models.Route, error) {
	var (
		r        models.Route
		history  []byte
		priority string
	)
	err := row.Scan(&r.ID, &r.Name, &r.StartLat, &r.StartLng, &r.EndLat, &r.EndLng,
		&r.LastNormalTime, &r.LastState, &history, &priority)
	if err != nil {
		return nil, err
	}
	var entries []models.HistoryEntry
	if len(history) > 0 {
		if err := json.Unmarshal(history, &entries); err != nil {
			return nil, fmt.Errorf("decode history for route %q: %w", r.Name, err)
		}
	}
	r.SetHistory(entries)
	r.Priority = models.Priority(priority)
	return &r, nil
}

func (s *PostgresStore) ListRoutes(ctx context.Context) ([]models.Route, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	defer rows.Close()

	var routes []models.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

func (s *PostgresStore) getOne(ctx context.Context, where string, arg any) (*models.Route, error) {
	r, err := scanRoute(s.pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetRoute(ctx context.Context, name string) (*models.Route, error) {
	return s.getOne(ctx, "name = $1", name)
}

func (s *PostgresStore) GetRouteByID(ctx context.Context, id int64) (*models.Route, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *PostgresStore) AddRoute(ctx context.Context, route *models.Route) error {
	if route.Priority == "" {
		route.Priority = models.PriorityNormal
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO routes (name, start_lat, start_lng, end_lat, end_lng, priority)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, route.Name, route.StartLat, route.StartLng, route.EndLat, route.EndLng, string(route.Priority)).Scan(&route.ID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrRouteExists, route.Name)
	}
	if err != nil {
		return fmt.Errorf("add route: %w", err)
	}
	route.SetHistory([]models.HistoryEntry{})
	return nil
}

func (s *PostgresStore) DeleteRoute(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM routes WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete route: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func (s *PostgresStore) UpdatePriority(ctx context.Context, name string, priority models.Priority) error {
	tag, err := s.pool.Exec(ctx, `UPDATE routes SET priority = $1 WHERE name = $2`, string(priority), name)
	if err != nil {
		return fmt.Errorf("update priority: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func (s *PostgresStore) RecordCheck(ctx context.Context, id int64, entry models.HistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("record check: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT historical_times FROM routes WHERE id = $1 FOR UPDATE`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRouteNotFound
	}
	if err != nil {
		return fmt.Errorf("record check: %w", err)
	}

	var history []models.HistoryEntry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &history); err != nil {
			return fmt.Errorf("decode history: %w", err)
		}
	}
	encoded, err := json.Marshal(AppendHistory(history, entry, models.MaxHistory))
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE routes
		SET historical_times = $1::jsonb, last_state = $2, last_normal_time = $3
		WHERE id = $4
	`, string(encoded), string(entry.State), entry.NormalTime, id)
	if err != nil {
		return fmt.Errorf("record check: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetConfig(ctx context.Context, name string, dest any) (bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM config WHERE name = $1`, name).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get config %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return true, fmt.Errorf("decode config %q: %w", name, err)
	}
	return true, nil
}

func (s *PostgresStore) SetConfig(ctx context.Context, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO config (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value
	`, name, string(encoded))
	if err != nil {
		return fmt.Errorf("set config %q: %w", name, err)
	}
	return nil
}
