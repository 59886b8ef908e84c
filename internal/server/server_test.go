package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/campusolx/backend/internal/auth"
	"github.com/campusolx/backend/internal/config"
	"github.com/campusolx/backend/internal/realtime"
	"github.com/campusolx/backend/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	keys []string
}

func (s *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return "https://cdn.test/" + key, nil
}

type harness struct {
	t      *testing.T
	srv    *Server
	broker *realtime.MemoryBroker
	store  *fakeStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { _ = broker.Close() })
	store := &fakeStore{}
	cfg := &config.Config{
		AppEnv: "test",
		Auth:   config.AuthConfig{AdminEmail: "admin@campus.edu"},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20, MaxImages: 5},
	}
	tokens, err := auth.NewTokenManager("test-secret-key-at-least-32-chars", time.Hour)
	require.NoError(t, err)
	srv := New(Deps{
		Config: cfg,
		DB:     testutil.NewDB(t),
		Store:  store,
		Broker: broker,
		Tokens: tokens,
	})
	return &harness{t: t, srv: srv, broker: broker, store: store}
}

type response struct {
	Code int
	Body map[string]any
}

func (h *harness) do(req *http.Request, token string) response {
	h.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	out := response{Code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &out.Body), rec.Body.String())
	}
	return out
}

func (h *harness) json(method, path, token string, body any) response {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, token)
}

func (h *harness) register(email, name string) (token, id string) {
	h.t.Helper()
	res := h.json(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "correct-horse", "name": name,
	})
	require.Equal(h.t, http.StatusCreated, res.Code, res.Body)
	user := res.Body["user"].(map[string]any)
	return res.Body["token"].(string), user["id"].(string)
}

func (h *harness) createItem(token, title, price string, images int) uint64 {
	h.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(h.t, w.WriteField("title", title))
	require.NoError(h.t, w.WriteField("description", "barely used"))
	require.NoError(h.t, w.WriteField("price", price))
	require.NoError(h.t, w.WriteField("category", "Books"))
	for i := 0; i < images; i++ {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="photo%d.png"`, i))
		hdr.Set("Content-Type", "image/png")
		part, err := w.CreatePart(hdr)
		require.NoError(h.t, err)
		_, err = part.Write([]byte("\x89PNG fake"))
		require.NoError(h.t, err)
	}
	require.NoError(h.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/items", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	res := h.do(req, token)
	require.Equal(h.t, http.StatusCreated, res.Code, res.Body)
	item := res.Body["item"].(map[string]any)
	assert.Equal(h.t, "pending", item["status"])
	assert.Len(h.t, item["images"], images)
	return uint64(item["id"].(float64))
}

func errorCode(r response) string {
	e, _ := r.Body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	res := h.json(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "ok", res.Body["status"])
}

func TestAuthErrors(t *testing.T) {
	h := newHarness(t)

	res := h.json(http.MethodGet, "/api/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "missing_token", errorCode(res))

	res = h.json(http.MethodGet, "/api/chats", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "invalid_token", errorCode(res))

	res = h.json(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "x@gmail.com", "password": "correct-horse", "name": "X"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "validation_error", errorCode(res))

	res = h.json(http.MethodPost, "/api/auth/google", "", map[string]string{"idToken": "x"})
	assert.Equal(t, http.StatusNotFound, res.Code, "google route is off without a verifier")

	token, _ := h.register("sam@mit.edu", "Sam")
	res = h.json(http.MethodGet, "/api/admin/stats", token, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = h.json(http.MethodGet, "/api/auth/verify", token, nil)
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, res.Body["valid"])
}

func TestMarketplaceFlow(t *testing.T) {
	h := newHarness(t)
	sellerTok, sellerID := h.register("sam@mit.edu", "Sam")
	buyerTok, _ := h.register("bea@stanford.edu", "Bea")
	outsiderTok, _ := h.register("oscar@berkeley.edu", "Oscar")
	adminTok, _ := h.register("admin@campus.edu", "Admin")

	itemID := h.createItem(sellerTok, "Linear Algebra Done Right", "10", 2)
	assert.Len(t, h.store.keys, 2)

	list := h.json(http.MethodGet, "/api/items", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.EqualValues(t, 0, list.Body["total"])

	res := h.json(http.MethodPost, fmt.Sprintf("/api/admin/items/%d/approve", itemID), adminTok, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	other := h.createItem(sellerTok, "Desk Lamp", "10.01", 0)
	res = h.json(http.MethodPost, fmt.Sprintf("/api/admin/items/%d/approve", other), adminTok, map[string]string{"message": "looks good"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)

	list = h.json(http.MethodGet, "/api/items?minPrice=10&maxPrice=10", "", nil)
	require.Equal(t, http.StatusOK, list.Code)
	items := list.Body["items"].([]any)
	require.Len(t, items, 1)
	assert.EqualValues(t, itemID, items[0].(map[string]any)["id"])
	assert.EqualValues(t, 10, items[0].(map[string]any)["price"])
	seller := items[0].(map[string]any)["seller"].(map[string]any)
	assert.Equal(t, sellerID, seller["id"])
	assert.Equal(t, "Sam", seller["name"])
	assert.NotContains(t, seller, "email")

	res = h.json(http.MethodGet, fmt.Sprintf("/api/items/%d", itemID), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "Sam", res.Body["item"].(map[string]any)["seller"].(map[string]any)["name"])

	res = h.json(http.MethodGet, "/api/items?minPrice=11&maxPrice=10", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.json(http.MethodPost, "/api/chats", buyerTok, map[string]any{"itemId": itemID, "sellerId": sellerID})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	chatID := uint64(res.Body["chat"].(map[string]any)["id"].(float64))

	res = h.json(http.MethodPost, "/api/chats", buyerTok, map[string]any{"itemId": itemID, "sellerId": sellerID})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.EqualValues(t, chatID, res.Body["error"].(map[string]any)["chatId"])

	events, cancel, err := h.broker.Subscribe(context.Background(), realtime.ConversationTopic(chatID))
	require.NoError(t, err)
	defer cancel()

	msgPath := fmt.Sprintf("/api/chats/%d/messages", chatID)
	res = h.json(http.MethodPost, msgPath, buyerTok, map[string]string{"content": strings.Repeat("a", 1001)})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = h.json(http.MethodPost, msgPath, buyerTok, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = h.json(http.MethodPost, msgPath, outsiderTok, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = h.json(http.MethodPost, msgPath, buyerTok, map[string]string{"content": strings.Repeat("a", 1000)})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, true, res.Body["message"].(map[string]any)["isOwnMessage"])

	select {
	case ev := <-events:
		assert.Equal(t, realtime.EventNewMessage, ev.Name)
		var data map[string]any
		require.NoError(t, json.Unmarshal(ev.Data, &data))
		assert.EqualValues(t, chatID, data["chat_id"])
		assert.Equal(t, "Bea", data["sender"])
	case <-time.After(time.Second):
		t.Fatal("new_message was not published")
	}

	res = h.json(http.MethodGet, fmt.Sprintf("/api/chats/%d", chatID), sellerTok, nil)
	require.Equal(t, http.StatusOK, res.Code)
	msgs := res.Body["chat"].(map[string]any)["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, false, msgs[0].(map[string]any)["isOwnMessage"])

	res = h.json(http.MethodGet, fmt.Sprintf("/api/chats/%d", chatID), outsiderTok, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = h.json(http.MethodDelete, fmt.Sprintf("/api/chats/%d", chatID), buyerTok, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_state", errorCode(res))

	soldPath := fmt.Sprintf("/api/items/%d/mark-sold", itemID)
	res = h.json(http.MethodPost, soldPath, buyerTok, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = h.json(http.MethodPost, soldPath, sellerTok, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "sold", res.Body["item"].(map[string]any)["status"])
	res = h.json(http.MethodPost, soldPath, sellerTok, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, "invalid_transition", errorCode(res))

	res = h.json(http.MethodGet, "/api/notifications", sellerTok, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 2, res.Body["unreadCount"])

	res = h.json(http.MethodGet, "/api/admin/stats", adminTok, nil)
	require.Equal(t, http.StatusOK, res.Code)
	stats := res.Body["stats"].(map[string]any)
	assert.EqualValues(t, 4, stats["totalUsers"])
	assert.EqualValues(t, 0, stats["pendingItems"])
}

func TestRealtimeWebSocket(t *testing.T) {
	h := newHarness(t)
	sellerTok, sellerID := h.register("sam@mit.edu", "Sam")
	buyerTok, _ := h.register("bea@stanford.edu", "Bea")
	outsiderTok, _ := h.register("oscar@berkeley.edu", "Oscar")
	adminTok, _ := h.register("admin@campus.edu", "Admin")

	itemID := h.createItem(sellerTok, "Graphing Calculator", "40", 0)
	res := h.json(http.MethodPost, fmt.Sprintf("/api/admin/items/%d/approve", itemID), adminTok, nil)
	require.Equal(t, http.StatusOK, res.Code)
	res = h.json(http.MethodPost, "/api/chats", buyerTok, map[string]any{"itemId": itemID, "sellerId": sellerID})
	require.Equal(t, http.StatusCreated, res.Code)
	chatID := uint64(res.Body["chat"].(map[string]any)["id"].(float64))

	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + fmt.Sprintf("/ws/chats/%d", chatID)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token="+outsiderTok, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+sellerTok, nil)
	require.NoError(t, err)
	defer conn.Close()

	res = h.json(http.MethodPost, fmt.Sprintf("/api/chats/%d/messages", chatID), buyerTok, map[string]string{"content": "still available?"})
	require.Equal(t, http.StatusCreated, res.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "new_message", frame.Event)
	assert.Equal(t, "still available?", frame.Data["content"])
	assert.EqualValues(t, chatID, frame.Data["chat_id"])
}
