package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/grocerymart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/grocerymart-backend/pkg/db/models"
	"github.com/angelmondragon/grocerymart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/grocerymart-backend/pkg/errors"
)

func seedNotification(t *testing.T, conn *gorm.DB, inbox Inbox, title string, createdAt time.Time) models.Notification {
	t.Helper()
	n := models.Notification{
		Audience:  inbox.Audience,
		Type:      enums.NotificationTypeOrder,
		Title:     title,
		Message:   title + " message",
		CreatedAt: createdAt,
	}
	if inbox.Audience == enums.NotificationAudienceUser {
		id := inbox.UserID
		n.UserID = &id
	}
	require.NoError(t, conn.Create(&n).Error)
	return n
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := UserInbox(uuid.New())
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		seedNotification(t, conn, user, title, base.Add(time.Duration(i)*time.Minute))
	}
	seedNotification(t, conn, UserInbox(uuid.New()), "someone else", base.Add(time.Hour))
	seedNotification(t, conn, AdminInbox(), "admin", base.Add(time.Hour))

	page, err := svc.List(ctx, ListParams{Inbox: user, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "third", page.Items[0].Title)
	assert.Equal(t, "second", page.Items[1].Title)
	require.True(t, page.Pagination.HasMore)

	rest, err := svc.List(ctx, ListParams{Inbox: user, Limit: 2, Cursor: page.Pagination.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Equal(t, "first", rest.Items[0].Title)
	assert.False(t, rest.Pagination.HasMore)

	admin, err := svc.List(ctx, ListParams{Inbox: AdminInbox()})
	require.NoError(t, err)
	require.Len(t, admin.Items, 1)
	assert.Equal(t, "admin", admin.Items[0].Title)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, ListParams{Inbox: UserInbox(uuid.Nil)})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.List(ctx, ListParams{Inbox: Inbox{Audience: "store"}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(ctx, ListParams{Inbox: AdminInbox(), Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkReadScopesToInbox(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	owner := UserInbox(uuid.New())
	stranger := UserInbox(uuid.New())
	n := seedNotification(t, conn, owner, "mine", time.Now().UTC())

	err := svc.MarkRead(ctx, stranger, n.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	err = svc.MarkRead(ctx, AdminInbox(), n.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.MarkRead(ctx, owner, n.ID))
	require.NoError(t, svc.MarkRead(ctx, owner, n.ID), "marking twice is a no-op")

	var stored models.Notification
	require.NoError(t, conn.First(&stored, "id = ?", n.ID).Error)
	assert.True(t, stored.IsRead)
	assert.NotNil(t, stored.ReadAt)
}

func TestUnreadCountAndMarkAllRead(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	user := UserInbox(uuid.New())
	now := time.Now().UTC()
	seedNotification(t, conn, user, "a", now)
	seedNotification(t, conn, user, "b", now.Add(time.Second))
	seedNotification(t, conn, AdminInbox(), "admin", now)

	count, err := svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	unread, err := svc.List(ctx, ListParams{Inbox: user, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 2)

	marked, err := svc.MarkAllRead(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	count, err = svc.UnreadCount(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, count)

	adminCount, err := svc.UnreadCount(ctx, AdminInbox())
	require.NoError(t, err)
	assert.Equal(t, int64(1), adminCount, "admin inbox untouched")

	unread, err = svc.List(ctx, ListParams{Inbox: user, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}
