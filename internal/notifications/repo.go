package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
)

// Inbox addresses either one customer's notifications or the shared admin inbox.
type Inbox struct {
	Audience enums.NotificationAudience
	UserID   uuid.UUID
}

// UserInbox scopes queries to a single customer.
func UserInbox(userID uuid.UUID) Inbox {
	return Inbox{Audience: enums.NotificationAudienceUser, UserID: userID}
}

// AdminInbox scopes queries to the admin audience.
func AdminInbox() Inbox {
	return Inbox{Audience: enums.NotificationAudienceAdmin}
}

// Repository exposes persistence helpers for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	CreateMany(ctx context.Context, notifications []models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	UnreadCount(ctx context.Context, inbox Inbox) (int64, error)
	MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, inbox Inbox, now time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNotificationsParams struct {
	Inbox      Inbox
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

type notificationMarkResult struct {
	Updated bool
	Found   bool
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *repositoryImpl) CreateMany(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(notifications, 200).Error
}

func (r *repositoryImpl) scoped(ctx context.Context, inbox Inbox) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Notification{}).Where("audience = ?", inbox.Audience)
	if inbox.Audience == enums.NotificationAudienceUser {
		query = query.Where("user_id = ?", inbox.UserID)
	}
	return query
}

// List returns up to params.Limit rows ordered newest first; callers pass a
// buffered limit to detect the next page.
func (r *repositoryImpl) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	query := r.scoped(ctx, params.Inbox)
	if params.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *repositoryImpl) UnreadCount(ctx context.Context, inbox Inbox) (int64, error) {
	var count int64
	err := r.scoped(ctx, inbox).Where("is_read = ?", false).Count(&count).Error
	return count, err
}

func (r *repositoryImpl) MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	result := r.scoped(ctx, inbox).
		Where("id = ? AND is_read = ?", notificationID, false).
		UpdateColumns(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return notificationMarkResult{}, result.Error
	}

	mark := notificationMarkResult{Updated: result.RowsAffected > 0}
	if result.RowsAffected > 0 {
		mark.Found = true
		return mark, nil
	}

	var count int64
	if err := r.scoped(ctx, inbox).Where("id = ?", notificationID).Count(&count).Error; err != nil {
		return notificationMarkResult{}, err
	}
	mark.Found = count > 0
	return mark, nil
}

func (r *repositoryImpl) MarkAllRead(ctx context.Context, inbox Inbox, now time.Time) (int64, error) {
	result := r.scoped(ctx, inbox).
		Where("is_read = ?", false).
		UpdateColumns(map[string]any{"is_read": true, "read_at": now})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
