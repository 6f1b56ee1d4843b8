package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nuhub/internal/router"
)

// JournalEntry is one row of the parameter journal.
type JournalEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Module    string    `gorm:"type:text;not null;index:idx_param_journal_module" json:"module"`
	Name      string    `gorm:"type:text;not null" json:"name"`
	Value     string    `gorm:"type:jsonb;not null" json:"value"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (JournalEntry) TableName() string {
	return "param_journal"
}

// Decoded returns the stored value.
func (e JournalEntry) Decoded() (router.Value, error) {
	var v router.Value
	err := json.Unmarshal([]byte(e.Value), &v)
	return v, err
}

// Journal appends every store write to Postgres. It is never read back into
// a parameter store.
type Journal struct {
	db        *gorm.DB
	batchSize int
}

// OpenJournal connects to dsn and migrates the journal table.
func OpenJournal(dsn string, batchSize int) (*Journal, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return NewJournal(db, batchSize)
}

func NewJournal(db *gorm.DB, batchSize int) (*Journal, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	if err := db.AutoMigrate(&JournalEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Journal{db: db, batchSize: batchSize}, nil
}

func (j *Journal) Name() string { return "postgres_journal" }

func (j *Journal) WriteBatch(ctx context.Context, batch []ParamUpdate) error {
	rows := make([]JournalEntry, 0, len(batch))
	for _, u := range batch {
		raw, err := json.Marshal(u.Value)
		if err != nil {
			return fmt.Errorf("failed to encode %s/%s: %w", u.Module, u.Name, err)
		}
		rows = append(rows, JournalEntry{
			Module:    u.Module,
			Name:      u.Name,
			Value:     string(raw),
			CreatedAt: u.At,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return j.db.WithContext(ctx).CreateInBatches(rows, j.batchSize).Error
}

// Recent returns the newest entries of a module, newest first.
func (j *Journal) Recent(ctx context.Context, module string, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var entries []JournalEntry
	err := j.db.WithContext(ctx).
		Where("module = ?", module).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
