package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/MSB0095/sol-beast-sub004/internal/logger"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Status string

const (
	// StatusAttempting rows exist from Begin until Settle or Fail. Rows
	// still attempting at startup mean the process died mid-trade.
	StatusAttempting Status = "attempting"
	StatusSettled    Status = "settled"
	StatusFailed     Status = "failed"
)

// Record is one trade intent. Amount is SOL for buys and tokens for sells.
type Record struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Side      Side           `gorm:"column:side;index"`
	Mint      string         `gorm:"column:mint;index"`
	Amount    string         `gorm:"column:amount"`
	RefPrice  string         `gorm:"column:ref_price"`
	Status    Status         `gorm:"column:status;index"`
	Signature string         `gorm:"column:signature"`
	FillPrice string         `gorm:"column:fill_price"`
	Details   datatypes.JSON `gorm:"column:details;type:TEXT"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (Record) TableName() string { return "trade_intents" }

// Journal persists trade intents in two phases so no submission can be
// forgotten: Begin writes the row before the order leaves the process,
// Settle or Fail closes it afterwards.
type Journal struct {
	db *gorm.DB
}

func Open(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("intent journal: path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Begin(ctx context.Context, side Side, mint string, amount, refPrice decimal.Decimal) (Record, error) {
	details, _ := json.Marshal(map[string]string{"mint": mint, "side": string(side)})
	rec := Record{
		ID:        uuid.NewString(),
		Side:      side,
		Mint:      mint,
		Amount:    amount.String(),
		RefPrice:  refPrice.String(),
		Status:    StatusAttempting,
		Details:   details,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Settle marks the intent filled. Journal writes after submission are best
// effort: the trade already happened, losing the update must not fail it.
func (j *Journal) Settle(ctx context.Context, id, signature string, fillPrice decimal.Decimal) {
	err := j.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusSettled,
		"signature":  signature,
		"fill_price": fillPrice.String(),
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		logger.Warnf("[INTENT] settle %s: %v", id, err)
	}
}

func (j *Journal) Fail(ctx context.Context, id string, cause error) {
	details, _ := json.Marshal(map[string]string{"error": cause.Error()})
	err := j.db.WithContext(ctx).Model(&Record{}).Where("id = ?", id).Updates(map[string]any{
		"status":     StatusFailed,
		"details":    datatypes.JSON(details),
		"updated_at": time.Now(),
	}).Error
	if err != nil {
		logger.Warnf("[INTENT] fail %s: %v", id, err)
	}
}

// Unresolved returns intents still attempting, oldest first. Called at
// startup to surface trades whose outcome the previous run never learned.
func (j *Journal) Unresolved(ctx context.Context) ([]Record, error) {
	var out []Record
	err := j.db.WithContext(ctx).
		Where("status = ?", StatusAttempting).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// Recent returns the newest intents for the dashboard, any status.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Record
	err := j.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}
