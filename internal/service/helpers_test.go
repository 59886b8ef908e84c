package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/repository"
	"github.com/campusolx/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct{}

func (fakeTokens) Issue(subject string) (string, time.Time, error) {
	return "tok-" + subject, time.Now().Add(time.Hour), nil
}

func (fakeTokens) Verify(token string) (string, error) {
	if !strings.HasPrefix(token, "tok-") {
		return "", errors.New("bad token")
	}
	return strings.TrimPrefix(token, "tok-"), nil
}

type memStore struct {
	mu   sync.Mutex
	keys []string
	fail bool
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if s.fail {
		return "", errors.New("store down")
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return "https://cdn.test/" + key, nil
}

type note struct {
	UserID, Type, Body string
	ItemID             *uint64
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *recordingNotifier) Notify(_ context.Context, userID, typ, _, body string, itemID *uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{UserID: userID, Type: typ, Body: body, ItemID: itemID})
}

type repos struct {
	users repository.UserRepository
	items repository.ItemRepository
	convs repository.ConversationRepository
}

func newRepos(t *testing.T) repos {
	t.Helper()
	gdb := testutil.NewDB(t)
	return repos{
		users: repository.NewUserRepository(gdb),
		items: repository.NewItemRepository(gdb),
		convs: repository.NewConversationRepository(gdb),
	}
}

func createUser(t *testing.T, r repository.UserRepository, name string, moderator bool) Principal {
	t.Helper()
	u := &model.User{
		ID:         uuid.NewString(),
		Email:      strings.ToLower(name) + "@test.edu",
		Name:       name,
		University: "Test University",
		Verified:   true,
		Moderator:  moderator,
	}
	require.NoError(t, r.Create(context.Background(), u))
	return principalFromUser(u)
}

func createItem(t *testing.T, r repository.ItemRepository, sellerID string, status model.ItemStatus, price string) *model.Item {
	t.Helper()
	it := &model.Item{
		SellerID:    sellerID,
		Title:       fmt.Sprintf("Item %s", price),
		Description: "used but fine",
		Price:       decimal.RequireFromString(price),
		Category:    "Books",
		Status:      status,
	}
	require.NoError(t, r.Create(context.Background(), it))
	return it
}

func assertKind(t *testing.T, err error, k Kind) *Error {
	t.Helper()
	se, ok := AsError(err)
	require.Truef(t, ok, "expected *service.Error, got %v", err)
	assert.Equal(t, k, se.Kind)
	return se
}
