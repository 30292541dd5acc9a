package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/yuchen-w/CampusMarketBack/internal/models"
	"github.com/yuchen-w/CampusMarketBack/internal/services"
	chatws "github.com/yuchen-w/CampusMarketBack/internal/websocket"
	"github.com/yuchen-w/CampusMarketBack/pkg/utils"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64) ([]models.ConversationSummary, error)
	GetConversation(ctx context.Context, actorID int64, conversationID int64) (*models.ConversationDetail, error)
	CreateDirectConversation(ctx context.Context, actorID int64, peerID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID int64, conversationID int64, before time.Time, limit int) ([]models.Message, error)
	SendMessage(ctx context.Context, actorID int64, conversationID int64, body string) (*models.Message, error)
	MarkRead(ctx context.Context, actorID int64, conversationID int64, messageID int64) error
	IsMember(ctx context.Context, conversationID int64, userID int64) (bool, error)
}

type userLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	userRepo  userLookup
	jwtSecret string
}

type createDirectRequest struct {
	PeerID int64 `json:"peer_id"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

type markReadRequest struct {
	MessageID int64 `json:"message_id"`
}

func NewChatHandler(
	service chatApplicationService,
	hub *chatws.Hub,
	userRepo userLookup,
	jwtSecret string,
) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		userRepo:  userRepo,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	detail, err := h.service.GetConversation(c.Context(), userID, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": detail})
}

func (h *ChatHandler) CreateDirectConversation(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req createDirectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.CreateDirectConversation(c.Context(), userID, req.PeerID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	before, err := parseBefore(c.Query("before"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid before timestamp"})
	}

	limit := parsePositiveInt(c.Query("limit"), defaultMessageLimit)
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := h.service.ListMessages(c.Context(), userID, conversationID, before, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), userID, conversationID, req.Text)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := requestUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req markReadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.service.MarkRead(c.Context(), userID, conversationID, req.MessageID); err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// WebSocketAuth gatekeeps the realtime route. Identity resolution and the
// membership check both happen here, before the upgrade completes, so a
// non-member never holds an open socket.
func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || conversationID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	userID, ok := h.resolveWSIdentity(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	member, err := h.service.IsMember(c.Context(), conversationID, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to authorize connection"})
	}
	if !member {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}

	c.Locals("ws_user_id", userID)
	c.Locals("ws_conversation_id", conversationID)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("ws_user_id").(int64)
	conversationID, _ := conn.Locals("ws_conversation_id").(int64)
	client := chatws.NewClient(h.hub, conn, userID, conversationID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

// resolveWSIdentity turns the handshake token into a user id. Cookie
// sessions are unavailable on the websocket transport, so the token rides
// the query string with the Authorization header as fallback. Every
// failure mode collapses to "unauthenticated".
func (h *ChatHandler) resolveWSIdentity(c *fiber.Ctx) (int64, bool) {
	tokenString := strings.TrimSpace(c.Query("token"))
	if tokenString == "" {
		authHeader := strings.TrimSpace(c.Get("Authorization"))
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
	}
	if tokenString == "" {
		return 0, false
	}

	claims, err := utils.ValidateToken(tokenString, h.jwtSecret)
	if err != nil {
		return 0, false
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false
	}

	if _, err := h.userRepo.GetByID(c.Context(), userID); err != nil {
		return 0, false
	}

	return userID, true
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrPeerNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Peer not found"})
	case errors.Is(err, services.ErrNotParticipant):
		// Non-members get the same answer as a missing conversation.
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	case errors.Is(err, services.ErrMessageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Message not found"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
