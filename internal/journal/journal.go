// Package journal persists the group controller's activity to a local SQLite
// database so that deliveries and reservations can be inspected after the fact.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sweeney/group-controller/internal/logic"
)

// Entry kinds.
const (
	KindReserve     = "reserve"
	KindRejected    = "rejected"
	KindUpdate      = "update"
	KindAbandon     = "abandoned"
	KindInterrupted = "interrupted"
	KindSystem      = "system"
	KindMode        = "mode"
)

// DefaultRecent is the number of entries Recent returns for a non-positive limit.
const DefaultRecent = 50

// Entry is one journal row.
type Entry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	At        time.Time `gorm:"index;not null" json:"at"`
	Kind      string    `gorm:"size:16;index;not null" json:"kind"`
	Space     int       `json:"space"`
	Available bool      `json:"available"`
	Attempts  int       `json:"attempts,omitempty"`
	Detail    string    `gorm:"size:255" json:"detail,omitempty"`
}

// Journal is a gorm-backed activity log.
type Journal struct {
	db       *gorm.DB
	lastMode logic.DisplayMode
}

// Open opens (creating if needed) the SQLite journal at path and migrates it.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("journal handle: %w", err)
	}
	// SQLite serialises writers anyway.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Entry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordReport writes one row per command and delivery in the report, plus a
// row whenever the display mode changes. Empty reports write nothing.
func (j *Journal) RecordReport(ctx context.Context, r logic.Report) error {
	var rows []Entry
	for _, c := range r.Commands {
		kind := KindReserve
		if !c.Applied {
			kind = KindRejected
		}
		rows = append(rows, Entry{At: c.At, Kind: kind, Space: c.Space})
	}
	for _, d := range r.Deliveries {
		e := Entry{
			At:        d.Update.Timestamp,
			Kind:      KindUpdate,
			Space:     d.Update.Space,
			Available: d.Update.Available,
			Attempts:  d.Attempts,
			Detail:    string(d.Update.Reason),
		}
		if !d.Delivered {
			e.Kind = KindAbandon
			if errors.Is(d.Err, context.Canceled) {
				e.Kind = KindInterrupted
			}
			if d.Err != nil {
				e.Detail = d.Err.Error()
			}
		}
		rows = append(rows, e)
	}
	if r.Mode != "" && r.Mode != j.lastMode {
		rows = append(rows, Entry{At: r.Timestamp, Kind: KindMode, Space: -1, Detail: string(r.Mode)})
	}
	if len(rows) == 0 {
		return nil
	}

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("record report: %w", err)
	}
	j.lastMode = r.Mode
	return nil
}

// RecordSystem writes a system event such as STARTUP or SHUTDOWN.
func (j *Journal) RecordSystem(ctx context.Context, at time.Time, event, reason string) error {
	detail := event
	if reason != "" {
		detail += " " + reason
	}
	e := Entry{At: at, Kind: KindSystem, Space: -1, Detail: detail}
	if err := j.db.WithContext(ctx).Create(&e).Error; err != nil {
		return fmt.Errorf("record system event: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecent
	}
	var entries []Entry
	err := j.db.WithContext(ctx).Order("at DESC").Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
