package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"pooledger/core/events"
	"pooledger/core/executor"
)

var (
	ErrNotFound          = errors.New("journal: not found")
	ErrUnsupportedDriver = errors.New("journal: unsupported driver")
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultEventLimit caps event queries without an explicit limit.
	DefaultEventLimit = 100
	MaxEventLimit     = 1000
)

// Config selects the journal backend.
type Config struct {
	Driver string `toml:"Driver" yaml:"driver"`
	DSN    string `toml:"DSN" yaml:"dsn"`
}

// Journal persists receipts and events for query by the HTTP API.
type Journal struct {
	db *gorm.DB
}

var _ executor.Journal = (*Journal)(nil)

// Open connects to the configured database and migrates the schema.
func Open(cfg Config) (*Journal, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Journal, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordReceipt stores receipt and, for committed transactions, its events.
func (j *Journal) RecordReceipt(ctx context.Context, receipt *executor.Receipt) error {
	if receipt == nil {
		return nil
	}
	encoded, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	row := TxRecord{
		Hash:              receipt.Hash,
		Signer:            receipt.Signer.String(),
		Status:            string(receipt.Status),
		Kind:              receipt.Kind,
		Error:             receipt.Error,
		FailedInstruction: receipt.FailedInstruction,
		Program:           receipt.Program,
		Instruction:       receipt.Instruction,
		Timestamp:         receipt.Timestamp,
		Receipt:           string(encoded),
	}
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
			return err
		}
		if !receipt.Committed() || len(receipt.Events) == 0 {
			return nil
		}
		rows := make([]EventRecord, 0, len(receipt.Events))
		for i, evt := range receipt.Events {
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return err
			}
			rows = append(rows, EventRecord{
				ID:         uuid.New(),
				TxHash:     receipt.Hash,
				Seq:        i,
				Type:       evt.Type,
				Attributes: string(attrs),
				Timestamp:  receipt.Timestamp,
			})
		}
		return tx.Create(&rows).Error
	})
}

// Transaction returns the latest stored receipt for hash.
func (j *Journal) Transaction(ctx context.Context, hash string) (*executor.Receipt, error) {
	var row TxRecord
	err := j.db.WithContext(ctx).First(&row, "hash = ?", strings.ToLower(strings.TrimSpace(hash))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipt executor.Receipt
	if err := json.Unmarshal([]byte(row.Receipt), &receipt); err != nil {
		return nil, fmt.Errorf("journal: decode receipt %s: %w", row.Hash, err)
	}
	return &receipt, nil
}

// EventQuery filters journal events. Zero values match everything.
type EventQuery struct {
	Type   string
	TxHash string
	Limit  int
}

// StoredEvent is an event together with the transaction that produced it.
type StoredEvent struct {
	TxHash    string `json:"tx"`
	Seq       int    `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	events.Event
}

// Events returns the most recent events matching q, newest first.
func (j *Journal) Events(ctx context.Context, q EventQuery) ([]StoredEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}
	query := j.db.WithContext(ctx).Model(&EventRecord{})
	if t := strings.TrimSpace(q.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if h := strings.TrimSpace(q.TxHash); h != "" {
		query = query.Where("tx_hash = ?", strings.ToLower(h))
	}
	var rows []EventRecord
	if err := query.Order("timestamp desc").Order("tx_hash").Order("seq").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]StoredEvent, 0, len(rows))
	for _, row := range rows {
		var attrs map[string]string
		if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("journal: decode event %s: %w", row.ID, err)
		}
		out = append(out, StoredEvent{
			TxHash:    row.TxHash,
			Seq:       row.Seq,
			Timestamp: row.Timestamp,
			Event:     events.Event{Type: row.Type, Attributes: attrs},
		})
	}
	return out, nil
}

// CountByStatus reports how many transactions are stored per status.
func (j *Journal) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := j.db.WithContext(ctx).Model(&TxRecord{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}
