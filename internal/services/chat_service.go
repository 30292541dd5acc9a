package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/repository"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrPeerNotFound    = errors.New("peer not found")
	ErrNotParticipant  = errors.New("not a participant")
	ErrMessageNotFound = errors.New("message not found")
)

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
) ([]models.ConversationSummary, error) {
	return s.conversationRepo.ListForParticipant(ctx, actorID)
}

func (s *ChatService) GetConversation(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*models.ConversationDetail, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	participants, err := s.conversationRepo.GetParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &models.ConversationDetail{
		Conversation: *conversation,
		Participants: participants,
	}, nil
}

// CreateDirectConversation finds or creates the 1:1 conversation between
// the actor and peer. Idempotent: repeated calls land on the same row via
// the direct_key unique constraint, including under concurrency.
func (s *ChatService) CreateDirectConversation(
	ctx context.Context,
	actorID int64,
	peerID int64,
) (*models.Conversation, error) {
	if peerID <= 0 || peerID == actorID {
		return nil, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, peerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPeerNotFound
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := repository.NewConversationRepository(tx)

	conversation, err := txConversationRepo.CreateOrGetDirect(
		ctx,
		actorID,
		repository.DirectKey(actorID, peerID),
	)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.AddParticipant(ctx, conversation.ID, actorID); err != nil {
		return nil, err
	}
	if err := txConversationRepo.AddParticipant(ctx, conversation.ID, peerID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return conversation, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	before time.Time,
	limit int,
) ([]models.Message, error) {
	if conversationID <= 0 || limit <= 0 {
		return nil, ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	return s.messageRepo.ListBefore(ctx, conversationID, before, limit)
}

func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	body string,
) (*models.Message, error) {
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	message, err := txMessageRepo.Create(ctx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.Touch(ctx, conversationID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return message, nil
}

// MarkRead advances the actor's read watermark to messageID. Stale ids
// (at or behind the current watermark) are accepted and ignored.
func (s *ChatService) MarkRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	messageID int64,
) error {
	if conversationID <= 0 || messageID <= 0 {
		return ErrInvalidInput
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotParticipant
		}
		return err
	}

	exists, err := s.messageRepo.ExistsInConversation(ctx, messageID, conversationID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrMessageNotFound
	}

	_, err = s.conversationRepo.AdvanceReadWatermark(ctx, conversationID, actorID, messageID)
	return err
}

// IsMember is the membership guard shared by the REST handlers and the
// websocket upgrade path.
func (s *ChatService) IsMember(
	ctx context.Context,
	conversationID int64,
	userID int64,
) (bool, error) {
	return s.conversationRepo.IsMember(ctx, conversationID, userID)
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
