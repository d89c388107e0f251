package database

import (
	"time"

	"gorm.io/datatypes"
)

// Room is a chat room. Rooms and members are created by the companion auth
// service; the SFU only reads them.
type Room struct {
	RoomID    int64          `gorm:"primaryKey;autoIncrement;column:room_id"`
	RoomName  string         `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;default:'{}';serializer:json"`

	Members []Member `gorm:"foreignKey:RoomID;references:RoomID;constraint:OnDelete:CASCADE"`
}

// Member is a participant of a room, identified to the SFU by
// (member_id, secret_token).
type Member struct {
	MemberID    int64          `gorm:"primaryKey;autoIncrement;column:member_id"`
	RoomID      int64          `gorm:"index;not null;column:room_id"`
	MemberName  string         `gorm:"type:varchar(255);not null"`
	SecretToken string         `gorm:"type:varchar(255);not null;index"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;default:'{}';serializer:json"`

	Room *Room `gorm:"foreignKey:RoomID;references:RoomID;constraint:OnDelete:CASCADE"`
}
