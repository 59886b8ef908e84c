package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/campusolx/backend/internal/logger"
	"github.com/campusolx/backend/internal/model"
	"github.com/campusolx/backend/internal/realtime"
	"github.com/campusolx/backend/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxMessageLength = 1000

type MessageView struct {
	model.Message
	Sender *model.User
	IsOwn  bool
}

type ConversationDetail struct {
	Conversation model.Conversation
	Item         *model.Item
	Other        *model.User
	Messages     []MessageView
}

type ConversationSummary struct {
	Conversation model.Conversation
	Item         *model.Item
	Other        *model.User
	LastMessage  *model.Message
	MessageCount int64
}

// NewMessageEvent is the realtime payload for new_message.
type NewMessageEvent struct {
	ID        uint64    `json:"id"`
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"created_at"`
	ChatID    uint64    `json:"chat_id"`
}

type ConversationService interface {
	Create(ctx context.Context, buyer Principal, itemID uint64, sellerID string) (*model.Conversation, error)
	Get(ctx context.Context, actor Principal, id uint64) (*ConversationDetail, error)
	ListForUser(ctx context.Context, actor Principal) ([]ConversationSummary, error)
	SendMessage(ctx context.Context, actor Principal, id uint64, content string) (*MessageView, error)
	Delete(ctx context.Context, actor Principal, id uint64) error
	// Authorize checks that actor may observe conversation id.
	Authorize(ctx context.Context, actor Principal, id uint64) (*model.Conversation, error)
}

type conversationService struct {
	repo     repository.ConversationRepository
	itemRepo repository.ItemRepository
	userRepo repository.UserRepository
	broker   realtime.Broker
}

func NewConversationService(repo repository.ConversationRepository, itemRepo repository.ItemRepository, userRepo repository.UserRepository, broker realtime.Broker) ConversationService {
	return &conversationService{repo: repo, itemRepo: itemRepo, userRepo: userRepo, broker: broker}
}

// Create opens a conversation between buyer and the item's seller. An
// existing conversation for the same triple yields Conflict with its id.
func (s *conversationService) Create(ctx context.Context, buyer Principal, itemID uint64, sellerID string) (*model.Conversation, error) {
	if buyer.Anonymous() {
		return nil, ErrMissingToken
	}
	sellerID = strings.TrimSpace(sellerID)
	if itemID == 0 || sellerID == "" {
		return nil, Validation("itemId and sellerId are required")
	}
	if buyer.UserID == sellerID {
		return nil, Validation("cannot start a chat with yourself")
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("item not found")
		}
		return nil, err
	}
	if item.SellerID != sellerID {
		return nil, Validation("sellerId does not match the item's seller",
			FieldError{Field: "sellerId", Message: "Must be the item's seller"})
	}

	existing, err := s.repo.FindByTriple(ctx, itemID, buyer.UserID, sellerID)
	if err == nil {
		return nil, Conflict("chat already exists", existing.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cv := &model.Conversation{ItemID: itemID, BuyerID: buyer.UserID, SellerID: sellerID}
	if err := s.repo.Create(ctx, cv); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, err
		}
		// lost the race against a concurrent create for the same triple
		existing, ferr := s.repo.FindByTriple(ctx, itemID, buyer.UserID, sellerID)
		if ferr != nil {
			return nil, ferr
		}
		return nil, Conflict("chat already exists", existing.ID)
	}
	return cv, nil
}

func (s *conversationService) Authorize(ctx context.Context, actor Principal, id uint64) (*model.Conversation, error) {
	cv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("chat not found")
		}
		return nil, err
	}
	if !cv.HasParticipant(actor.UserID) {
		return nil, Forbidden("not a participant of this chat")
	}
	return cv, nil
}

func (s *conversationService) Get(ctx context.Context, actor Principal, id uint64) (*ConversationDetail, error) {
	cv, err := s.Authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, cv.ID)
	if err != nil {
		return nil, err
	}

	userIDs := []string{cv.BuyerID, cv.SellerID}
	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	detail := &ConversationDetail{
		Conversation: *cv,
		Other:        userPtr(users, cv.OtherParticipant(actor.UserID)),
		Messages:     make([]MessageView, 0, len(msgs)),
	}
	if item, err := s.itemRepo.FindByID(ctx, cv.ItemID); err == nil {
		detail.Item = item
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	for _, m := range msgs {
		detail.Messages = append(detail.Messages, MessageView{
			Message: m,
			Sender:  userPtr(users, m.SenderID),
			IsOwn:   m.SenderID == actor.UserID,
		})
	}
	return detail, nil
}

func userPtr(users map[string]model.User, id string) *model.User {
	if u, ok := users[id]; ok {
		return &u
	}
	return nil
}

func (s *conversationService) ListForUser(ctx context.Context, actor Principal) ([]ConversationSummary, error) {
	if actor.Anonymous() {
		return nil, ErrMissingToken
	}
	convs, err := s.repo.FindByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return []ConversationSummary{}, nil
	}

	convIDs := make([]uint64, 0, len(convs))
	itemIDs := make([]uint64, 0, len(convs))
	userIDs := make([]string, 0, len(convs))
	for _, cv := range convs {
		convIDs = append(convIDs, cv.ID)
		itemIDs = append(itemIDs, cv.ItemID)
		userIDs = append(userIDs, cv.OtherParticipant(actor.UserID))
	}
	items, err := s.itemRepo.FindByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	users, err := s.userRepo.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	last, err := s.repo.LastMessages(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountMessages(ctx, convIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, cv := range convs {
		sum := ConversationSummary{
			Conversation: cv,
			Other:        userPtr(users, cv.OtherParticipant(actor.UserID)),
			MessageCount: counts[cv.ID],
		}
		if it, ok := items[cv.ItemID]; ok {
			sum.Item = &it
		}
		if m, ok := last[cv.ID]; ok {
			sum.LastMessage = &m
		}
		out = append(out, sum)
	}
	return out, nil
}

// SendMessage appends a message and then publishes new_message. The append
// is the commit point; publish failures are only logged.
func (s *conversationService) SendMessage(ctx context.Context, actor Principal, id uint64, content string) (*MessageView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, Validation("message content required",
			FieldError{Field: "content", Message: "This field is required"})
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, Validation("message too long",
			FieldError{Field: "content", Message: "Must be at most 1000 characters"})
	}
	cv, err := s.Authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{ConversationID: cv.ID, SenderID: actor.UserID, Content: content}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	sender := &model.User{ID: actor.UserID, Name: actor.Name, Email: actor.Email, University: actor.University}
	s.publish(ctx, cv.ID, NewMessageEvent{
		ID:        msg.ID,
		Content:   msg.Content,
		SenderID:  msg.SenderID,
		Sender:    actor.Name,
		CreatedAt: msg.CreatedAt,
		ChatID:    cv.ID,
	})
	return &MessageView{Message: *msg, Sender: sender, IsOwn: true}, nil
}

func (s *conversationService) publish(ctx context.Context, convID uint64, payload NewMessageEvent) {
	if s.broker == nil {
		return
	}
	log := logger.FromContext(ctx)
	ev, err := realtime.NewEvent(realtime.EventNewMessage, payload)
	if err != nil {
		log.Warn("encode realtime event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, realtime.ConversationTopic(convID), ev); err != nil {
		log.Warn("realtime publish failed", zap.Uint64("chat_id", convID), zap.Error(err))
	}
}

func (s *conversationService) Delete(ctx context.Context, actor Principal, id uint64) error {
	cv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return NotFound("chat not found")
		}
		return err
	}
	moderator := Authorize(actor, CapabilityModerator)
	if !cv.HasParticipant(actor.UserID) && !moderator {
		return Forbidden("not a participant of this chat")
	}
	if !moderator {
		counts, err := s.repo.CountMessages(ctx, []uint64{cv.ID})
		if err != nil {
			return err
		}
		if counts[cv.ID] > 0 {
			return InvalidState("chat has messages and cannot be deleted")
		}
	}
	return s.repo.Delete(ctx, cv.ID)
}
