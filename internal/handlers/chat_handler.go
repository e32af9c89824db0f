package handlers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/services"
	"github.com/antonykinuthia/luxliving/internal/store"
	chatws "github.com/antonykinuthia/luxliving/internal/websocket"
	"github.com/antonykinuthia/luxliving/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID string) ([]models.ConversationSummary, error)
	OpenConversation(ctx context.Context, actorID, targetID string) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID, conversationKey string, page, limit int) ([]models.Message, int, error)
	SendMessage(ctx context.Context, senderID, receiverID, text, imageID string, attachment *services.Attachment) (*models.Message, error)
	MarkRead(ctx context.Context, conversationKey, readerID string) error
	UploadAttachment(ctx context.Context, filename string, content io.Reader) (string, error)
	AttachmentURL(fileID string) string
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	jwtSecret string
}

type openConversationRequest struct {
	TargetID string `json:"targetId"`
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
	ImageID    string `json:"imageId"`
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.service.ListConversations(c.Context(), userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) OpenConversation(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req openConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	conversation, err := h.service.OpenConversation(c.Context(), userID, req.TargetID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationKey := c.Params("id")
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	messages, total, err := h.service.ListMessages(c.Context(), userID, conversationKey, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	if err := h.service.MarkRead(c.Context(), c.Params("id"), userID); err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// SendMessage accepts either a JSON body, or a multipart form carrying
// an image file that is uploaded before the message is written.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req sendMessageRequest
	var attachment *services.Attachment

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req.ReceiverID = c.FormValue("receiverId")
		req.Text = c.FormValue("text")
		req.ImageID = c.FormValue("imageId")
		if fileHeader, err := c.FormFile("image"); err == nil {
			file, err := fileHeader.Open()
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid attachment"})
			}
			defer file.Close()
			attachment = &services.Attachment{Filename: fileHeader.Filename, Content: file}
		}
	} else if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	message, err := h.service.SendMessage(c.Context(), userID, req.ReceiverID, req.Text, req.ImageID, attachment)
	if err != nil {
		return mapChatError(c, err)
	}

	response := fiber.Map{"message": message}
	if message.ImageURL != "" {
		response["imageViewUrl"] = h.service.AttachmentURL(message.ImageURL)
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// UploadAttachment stores media ahead of a send, so clients can show
// an upload progress state before committing the message.
func (h *ChatHandler) UploadAttachment(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing file"})
	}
	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid file"})
	}
	defer file.Close()

	fileID, err := h.service.UploadAttachment(c.Context(), fileHeader.Filename, file)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"fileId":  fileID,
		"viewUrl": h.service.AttachmentURL(fileID),
	})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := chatws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
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
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidParticipant), errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	case errors.Is(err, services.ErrAttachmentUploadFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "Failed to upload attachment"})
	case errors.Is(err, services.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Service temporarily unavailable"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
