package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
	"github.com/angelmondragon/grocerymart-backend/pkg/pagination"
	"github.com/angelmondragon/grocerymart-backend/pkg/types"
)

// Service defines notification list/read operations for one inbox at a time.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	UnreadCount(ctx context.Context, inbox Inbox) (int64, error)
	MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, inbox Inbox) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	Inbox      Inbox
	Limit      int
	Cursor     string
	UnreadOnly bool
}

type NotificationDTO struct {
	ID        uuid.UUID                  `json:"id"`
	Audience  enums.NotificationAudience `json:"audience"`
	Type      enums.NotificationType     `json:"type"`
	Title     string                     `json:"title"`
	Message   string                     `json:"message"`
	OrderID   *uuid.UUID                 `json:"order_id,omitempty"`
	IsRead    bool                       `json:"is_read"`
	ReadAt    *time.Time                 `json:"read_at,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
}

type ListResult = types.ListResult[NotificationDTO]

func FromModel(n models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        n.ID,
		Audience:  n.Audience,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		OrderID:   n.OrderID,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func validateInbox(inbox Inbox) error {
	switch inbox.Audience {
	case enums.NotificationAudienceAdmin:
		return nil
	case enums.NotificationAudienceUser:
		if inbox.UserID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid notification audience")
	}
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if err := validateInbox(params.Inbox); err != nil {
		return nil, err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.List(ctx, listNotificationsParams{
		Inbox:      params.Inbox,
		Limit:      pagination.LimitWithBuffer(limit),
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page, next := pagination.Page(rows, limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	items := make([]NotificationDTO, 0, len(page))
	for _, row := range page {
		items = append(items, FromModel(row))
	}
	return &ListResult{Items: items, Pagination: types.NewPagination(limit, next)}, nil
}

func (s *service) UnreadCount(ctx context.Context, inbox Inbox) (int64, error) {
	if err := validateInbox(inbox); err != nil {
		return 0, err
	}
	count, err := s.repo.UnreadCount(ctx, inbox)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, inbox Inbox, notificationID uuid.UUID) error {
	if err := validateInbox(inbox); err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, inbox, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, inbox Inbox) (int64, error) {
	if err := validateInbox(inbox); err != nil {
		return 0, err
	}

	count, err := s.repo.MarkAllRead(ctx, inbox, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
