package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/iEdgir01/traffic-manager/models"
)

// GormStore is the RouteStore used by the HTTP API.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the shared tables and the API-only users table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec(SchemaSQL).Error; err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return s.db.WithContext(ctx).AutoMigrate(&models.User{})
}

func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) ListRoutes(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	if err := s.db.WithContext(ctx).Order("id").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// ListRoutesAfter pages through routes by name. after is exclusive.
func (s *GormStore) ListRoutesAfter(ctx context.Context, after string, limit int) ([]models.Route, error) {
	q := s.db.WithContext(ctx).Order("name").Limit(limit)
	if after != "" {
		q = q.Where("name > ?", after)
	}
	var routes []models.Route
	if err := q.Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

func (s *GormStore) first(ctx context.Context, query string, arg any) (*models.Route, error) {
	var r models.Route
	err := s.db.WithContext(ctx).Where(query, arg).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &r, nil
}

func (s *GormStore) GetRoute(ctx context.Context, name string) (*models.Route, error) {
	return s.first(ctx, "name = ?", name)
}

func (s *GormStore) GetRouteByID(ctx context.Context, id int64) (*models.Route, error) {
	return s.first(ctx, "id = ?", id)
}

func (s *GormStore) AddRoute(ctx context.Context, route *models.Route) error {
	if route.Priority == "" {
		route.Priority = models.PriorityNormal
	}
	if route.History() == nil {
		route.SetHistory([]models.HistoryEntry{})
	}
	err := s.db.WithContext(ctx).Create(route).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrRouteExists, route.Name)
	}
	if err != nil {
		return fmt.Errorf("add route: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteRoute(ctx context.Context, name string) error {
	res := s.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Route{})
	if res.Error != nil {
		return fmt.Errorf("delete route: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func (s *GormStore) UpdatePriority(ctx context.Context, name string, priority models.Priority) error {
	res := s.db.WithContext(ctx).Model(&models.Route{}).Where("name = ?", name).Update("priority", priority)
	if res.Error != nil {
		return fmt.Errorf("update priority: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRouteNotFound
	}
	return nil
}

func (s *GormStore) RecordCheck(ctx context.Context, id int64, entry models.HistoryEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Route
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&r, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRouteNotFound
		}
		if err != nil {
			return fmt.Errorf("record check: %w", err)
		}

		r.SetHistory(AppendHistory(r.History(), entry, models.MaxHistory))
		state := string(entry.State)
		return tx.Model(&models.Route{}).Where("id = ?", id).Updates(map[string]any{
			"historical_times": r.HistoricalTimes,
			"last_state":       state,
			"last_normal_time": entry.NormalTime,
		}).Error
	})
}

func (s *GormStore) GetConfig(ctx context.Context, name string, dest any) (bool, error) {
	var c models.ConfigEntry
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get config %q: %w", name, err)
	}
	if err := json.Unmarshal([]byte(c.Value), dest); err != nil {
		return true, fmt.Errorf("decode config %q: %w", name, err)
	}
	return true, nil
}

func (s *GormStore) SetConfig(ctx context.Context, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.ConfigEntry{Name: name, Value: string(encoded)}).Error
	if err != nil {
		return fmt.Errorf("set config %q: %w", name, err)
	}
	return nil
}
