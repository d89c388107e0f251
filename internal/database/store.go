package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/logging"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"wchat-sfu/internal/types"
)

// ErrMemberNotFound is returned when no member matches the given id and
// secret. Callers map it to an auth failure.
var ErrMemberNotFound = errors.New("room member not found")

// Store wraps the GORM connection and the room-member queries the SFU needs.
type Store struct {
	db  *gorm.DB
	log logging.LeveledLogger
}

// Open connects to Postgres, applies the pool settings and runs
// migrations.
func Open(dbURL string, logger logging.LeveledLogger) (*Store, error) {
	if dbURL == "" {
		return nil, errors.New("DB_URL must be specified")
	}

	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	store := &Store{db: db, log: logger}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Infof("Database connection successful")
	return store, nil
}

func (s *Store) migrate() error {
	s.log.Infof("Running database migrations...")

	if err := s.db.AutoMigrate(&Room{}, &Member{}); err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}

	return nil
}

// FindRoomMember resolves a (memberID, secret) pair to the member and the
// room it belongs to. A wrong secret and an unknown member are
// indistinguishable to the caller.
func (s *Store) FindRoomMember(ctx context.Context, memberID int64, secret string) (types.RoomMember, error) {
	var row struct {
		MemberID   int64
		RoomID     int64
		RoomName   string
		MemberName string
	}

	err := s.db.WithContext(ctx).
		Model(&Member{}).
		Select("members.member_id, members.room_id, rooms.room_name, members.member_name").
		Joins("INNER JOIN rooms ON members.room_id = rooms.room_id").
		Where("members.member_id = ? AND members.secret_token = ?", memberID, secret).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.RoomMember{}, ErrMemberNotFound
		}
		return types.RoomMember{}, fmt.Errorf("room member lookup: %w", err)
	}

	return types.RoomMember{
		MemberID:   row.MemberID,
		RoomID:     row.RoomID,
		RoomName:   row.RoomName,
		MemberName: row.MemberName,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
