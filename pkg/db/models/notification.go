package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
)

// Notification is an in-app message for one user or for the admin inbox.
type Notification struct {
	ID        uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Audience  enums.NotificationAudience `gorm:"type:notification_audience;not null"`
	UserID    *uuid.UUID                 `gorm:"type:uuid"`
	Type      enums.NotificationType     `gorm:"type:notification_type;not null"`
	Title     string                     `gorm:"type:text;not null"`
	Message   string                     `gorm:"type:text;not null"`
	OrderID   *uuid.UUID                 `gorm:"type:uuid"`
	EventID   *uuid.UUID                 `gorm:"type:uuid"`
	IsRead    bool                       `gorm:"not null;default:false"`
	ReadAt    *time.Time                 `gorm:"type:timestamptz"`
	CreatedAt time.Time                  `gorm:"type:timestamptz;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
