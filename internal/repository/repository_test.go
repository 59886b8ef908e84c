package repository

import (
	"context"
	"testing"

	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newItem(sellerID, title, price string, status model.ItemStatus) *model.Item {
	return &model.Item{
		SellerID: sellerID,
		Title:    title,
		Price:    decimal.RequireFromString(price),
		Category: "Books",
		Status:   status,
	}
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(testutil.NewDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.User{ID: "u1", Email: "a@test.edu", Name: "A", Verified: true}))
	require.NoError(t, repo.Create(ctx, &model.User{ID: "u2", Email: "b@test.edu", Name: "B"}))

	err := repo.Create(ctx, &model.User{ID: "u3", Email: "a@test.edu", Name: "Dup"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	u, err := repo.FindByEmail(ctx, "b@test.edu")
	require.NoError(t, err)
	assert.Equal(t, "u2", u.ID)

	_, err = repo.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	byID, err := repo.FindByIDs(ctx, []string{"u1", "u2", "nope"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	require.NoError(t, repo.Update(ctx, "u2", map[string]any{"verified": true, "moderator": true}))
	total, verified, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.EqualValues(t, 2, verified)
}

func TestItemRepositoryFilterAndTransition(t *testing.T) {
	repo := NewItemRepository(testutil.NewDB(t))
	ctx := context.Background()

	cheap := newItem("s1", "Intro to Algorithms", "10", model.ItemStatusApproved)
	cheap.Images = []model.ItemImage{{Position: 1, ImageURL: "b.png"}, {Position: 0, ImageURL: "a.png"}}
	require.NoError(t, repo.Create(ctx, cheap))
	require.NoError(t, repo.Create(ctx, newItem("s1", "Desk", "10.01", model.ItemStatusApproved)))
	require.NoError(t, repo.Create(ctx, newItem("s2", "Lamp", "9.99", model.ItemStatusPending)))

	got, err := repo.FindByID(ctx, cheap.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.png", "b.png"}, got.ImageURLs())

	ten := decimal.RequireFromString("10")
	items, total, err := repo.List(ctx, ItemFilter{Status: model.ItemStatusApproved, MinPrice: &ten, MaxPrice: &ten})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, cheap.ID, items[0].ID)

	items, total, err = repo.List(ctx, ItemFilter{Search: "ALGO"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)

	items, total, err = repo.List(ctx, ItemFilter{Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 1)

	mine, err := repo.ListBySeller(ctx, "s1", model.ItemStatusApproved)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	ok, err := repo.TransitionStatus(ctx, cheap.ID, model.ItemStatusPending, model.ItemStatusRejected)
	require.NoError(t, err)
	assert.False(t, ok, "stale from-status must not apply")

	ok, err = repo.TransitionStatus(ctx, cheap.ID, model.ItemStatusApproved, model.ItemStatusSold)
	require.NoError(t, err)
	assert.True(t, ok)

	pending, err := repo.Count(ctx, model.ItemStatusPending)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending)

	recent, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestItemDeleteCascades(t *testing.T) {
	gdb := testutil.NewDB(t)
	items := NewItemRepository(gdb)
	convs := NewConversationRepository(gdb)
	ctx := context.Background()

	item := newItem("s1", "Desk", "10", model.ItemStatusApproved)
	item.Images = []model.ItemImage{{ImageURL: "a.png"}}
	require.NoError(t, items.Create(ctx, item))
	cv := &model.Conversation{ItemID: item.ID, BuyerID: "b1", SellerID: "s1"}
	require.NoError(t, convs.Create(ctx, cv))
	require.NoError(t, convs.CreateMessage(ctx, &model.Message{ConversationID: cv.ID, SenderID: "b1", Content: "hi"}))

	require.NoError(t, items.Delete(ctx, item.ID))
	assert.ErrorIs(t, items.Delete(ctx, item.ID), gorm.ErrRecordNotFound)

	_, err := convs.FindByID(ctx, cv.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	var n int64
	require.NoError(t, gdb.Model(&model.Message{}).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, gdb.Model(&model.ItemImage{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConversationRepository(t *testing.T) {
	repo := NewConversationRepository(testutil.NewDB(t))
	ctx := context.Background()

	a := &model.Conversation{ItemID: 1, BuyerID: "b1", SellerID: "s1"}
	b := &model.Conversation{ItemID: 2, BuyerID: "b1", SellerID: "s2"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	err := repo.Create(ctx, &model.Conversation{ItemID: 1, BuyerID: "b1", SellerID: "s1"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	found, err := repo.FindByTriple(ctx, 1, "b1", "s1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, repo.CreateMessage(ctx, &model.Message{ConversationID: a.ID, SenderID: "b1", Content: content}))
	}

	msgs, err := repo.ListMessages(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)

	last, err := repo.LastMessages(ctx, []uint64{a.ID, b.ID})
	require.NoError(t, err)
	assert.Equal(t, "three", last[a.ID].Content)
	_, ok := last[b.ID]
	assert.False(t, ok)

	counts, err := repo.CountMessages(ctx, []uint64{a.ID, b.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, counts[a.ID])
	assert.Zero(t, counts[b.ID])

	mine, err := repo.FindByUser(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, repo.Delete(ctx, a.ID))
	counts, err = repo.CountMessages(ctx, []uint64{a.ID})
	require.NoError(t, err)
	assert.Zero(t, counts[a.ID])
}

func TestNotificationRepository(t *testing.T) {
	repo := NewNotificationRepository(testutil.NewDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.Notification{UserID: "u1", Type: model.NotificationItemApproved, Title: "ok"}))
	}
	require.NoError(t, repo.Create(ctx, &model.Notification{UserID: "u2", Type: model.NotificationItemRejected}))

	unread, err := repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, unread)

	require.NoError(t, repo.MarkAllRead(ctx, "u1"))
	unread, err = repo.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, unread)

	list, err := repo.ListByUser(ctx, "u1", false, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.NotNil(t, list[0].ReadAt)

	list, err = repo.ListByUser(ctx, "u1", true, 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	other, err := repo.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, other)
}
