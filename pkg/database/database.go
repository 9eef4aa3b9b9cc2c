// Package database keeps an optional SQLite history of reconciliation runs.
package database

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrDatabaseNotInitialized is returned when a nil Store is used.
var ErrDatabaseNotInitialized = errors.New("database not initialized")

// CheckRun is one execution of the checker against a repository.
type CheckRun struct {
	gorm.Model
	Repository      string      `gorm:"index" json:"repository"`
	CheckType       string      `json:"check_type"`
	MinimumLeftDays int         `json:"minimum_left_days"`
	DomainsChecked  int         `json:"domains_checked"`
	Action          string      `json:"action"`         // created, updated, skipped
	SearchOutcome   string      `json:"search_outcome"` // found, not-found, unavailable
	IssueNumber     int         `json:"issue_number"`
	IssueURL        string      `json:"issue_url"`
	Commented       bool        `json:"commented"`
	Records         []ExpiryRow `gorm:"foreignKey:CheckRunID;constraint:OnDelete:CASCADE" json:"records"`
}

// ExpiryRow is one report row stored with its run.
type ExpiryRow struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	CheckRunID uint   `gorm:"index" json:"-"`
	Position   int    `json:"-"`
	DomainName string `json:"domain_name"`
	DaysLeft   int    `json:"days_left"`
	ExpireDate string `json:"expire_date"`
}

// Store wraps the history database.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	if err := db.AutoMigrate(&CheckRun{}, &ExpiryRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}

	log.Printf("history database %s initialized and migrations applied", path)
	return &Store{db: db}, nil
}

// RecordRun persists a run together with its rows. Row positions follow slice order.
func (s *Store) RecordRun(ctx context.Context, run *CheckRun) error {
	if s == nil || s.db == nil {
		return ErrDatabaseNotInitialized
	}
	for i := range run.Records {
		run.Records[i].Position = i
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first, with their rows in report order.
// An empty repository matches all repositories.
func (s *Store) RecentRuns(ctx context.Context, repository string, limit int) ([]CheckRun, error) {
	if s == nil || s.db == nil {
		return nil, ErrDatabaseNotInitialized
	}

	q := s.db.WithContext(ctx).
		Preload("Records", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("id DESC")
	if repository != "" {
		q = q.Where("repository = ?", repository)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []CheckRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
