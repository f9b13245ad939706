package repository

import (
	"context"
	"database/sql"
	"time"

	"farmlab_twin/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.TwinEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.TwinEvent, error)
}

type HistoryRepo interface {
	Record(ctx context.Context, ch models.Channel, r models.SensorReading) error
	Range(ctx context.Context, ch models.Channel, from, to time.Time) ([]models.SensorReading, error)
}

type Repository struct {
	EventRepo   EventRepo
	HistoryRepo HistoryRepo
	Auth        Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo:   NewEventSQLite(db),
		HistoryRepo: NewHistorySQLite(db),
		Auth:        NewUserRepository(db),
	}
}
