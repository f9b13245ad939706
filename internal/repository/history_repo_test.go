package repository_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"farmlab_twin/internal/models"
	"farmlab_twin/internal/repository"
)

func TestHistorySQLite_Record_StoresUTCStamp(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewHistorySQLite(db)

	locTokyo, _ := time.LoadLocation("Asia/Tokyo")
	recorded := time.Date(2026, 3, 14, 17, 30, 0, 0, locTokyo)
	wantStamp := recorded.UTC().Format("2006-01-02 15:04:05")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_readings")).
		WithArgs("temperature", wantStamp, 22.5).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Record(context.Background(), models.ChannelTemperature, models.SensorReading{
		Time:  recorded,
		Value: 22.5,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestHistorySQLite_Record_ZeroTimeBecomesNow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewHistorySQLite(db)

	isRecentStamp := sqlmockArgumentFunc(func(v driver.Value) bool {
		s, ok := v.(string)
		if !ok {
			return false
		}
		tm, err := time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return false
		}
		now := time.Now().UTC()
		return !tm.Before(now.Add(-5*time.Second)) && !tm.After(now.Add(5*time.Second))
	})

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sensor_readings")).
		WithArgs("co2", isRecentStamp, 612.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Record(context.Background(), models.ChannelCO2, models.SensorReading{Value: 612})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func TestHistorySQLite_Range_ReturnsOldestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewHistorySQLite(db)

	from := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"recorded_at", "value"}).
		AddRow(from.Add(1*time.Hour), 21.0).
		AddRow(from.Add(2*time.Hour), 21.4)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT recorded_at, value FROM sensor_readings")).
		WithArgs("temperature", from.Format("2006-01-02 15:04:05"), to.Format("2006-01-02 15:04:05")).
		WillReturnRows(rows)

	got, err := repo.Range(context.Background(), models.ChannelTemperature, from, to)
	if err != nil {
		t.Fatalf("Range() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Range() returned %d readings, want 2", len(got))
	}
	if got[0].Value != 21.0 || got[1].Value != 21.4 {
		t.Fatalf("Range() order wrong: %+v", got)
	}
	if got[0].Time.Location() != time.UTC {
		t.Fatalf("Range() time not UTC: %v", got[0].Time)
	}
}

func TestHistorySQLite_Range_QueryErrorIsPropagated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer func() { _ = db.Close() }()

	repo := repository.NewHistorySQLite(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT recorded_at, value FROM sensor_readings")).
		WillReturnError(errors.New("db down"))

	_, err = repo.Range(context.Background(), models.ChannelMoisture, time.Time{}, time.Now())
	if err == nil {
		t.Fatalf("Range() expected error, got nil")
	}
}
