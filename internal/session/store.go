// Package session persists chat memories in SQLite through gorm.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

type sessionRow struct {
	ID           string `gorm:"primaryKey"`
	MessageCount int
	CreatedAt    int64
	UpdatedAt    int64 `gorm:"index"`
}

func (sessionRow) TableName() string { return "sessions" }

type messageRow struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index:idx_session_ord,priority:1"`
	Ord       int    `gorm:"index:idx_session_ord,priority:2"`
	Role      string
	Content   string
}

func (messageRow) TableName() string { return "messages" }

// Store implements domain.SessionStore.
type Store struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger
}

// Open opens (creating if needed) the session database at path. ":memory:"
// gives a private in-process database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sessions db %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// one connection: sqlite serialises writers and ":memory:" is per-connection
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&sessionRow{}, &messageRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sessions db: %w", err)
	}
	return &Store{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "sessions"),
	}, nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*domain.Memory, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rows []messageRow
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("ord").Find(&rows).Error; err != nil {
		return nil, err
	}
	mem := &domain.Memory{SessionID: sessionID, Messages: make([]domain.Message, len(rows))}
	for i, r := range rows {
		mem.Messages[i] = domain.Message{Role: r.Role, Content: r.Content}
	}
	return mem, nil
}

// Save replaces the stored messages of memory's session.
func (s *Store) Save(ctx context.Context, memory *domain.Memory) error {
	if memory == nil || memory.SessionID == "" {
		return errors.New("session id is required")
	}
	now := s.now().Unix()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := sessionRow{ID: memory.SessionID, MessageCount: len(memory.Messages), CreatedAt: now, UpdatedAt: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"message_count", "updated_at"}),
		}).Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", memory.SessionID).Delete(&messageRow{}).Error; err != nil {
			return err
		}
		if len(memory.Messages) == 0 {
			return nil
		}
		rows := make([]messageRow, len(memory.Messages))
		for i, m := range memory.Messages {
			rows[i] = messageRow{SessionID: memory.SessionID, Ord: i, Role: m.Role, Content: m.Content}
		}
		return tx.CreateInBatches(rows, 100).Error
	})
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]domain.SessionInfo, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).Order("updated_at desc").Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.SessionInfo, len(rows))
	for i, r := range rows {
		out[i] = domain.SessionInfo{SessionID: r.ID, Messages: r.MessageCount, UpdatedAt: r.UpdatedAt}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", sessionID).Delete(&sessionRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		s.logger.Debug("deleted session", "session", sessionID)
		return tx.Where("session_id = ?", sessionID).Delete(&messageRow{}).Error
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
