package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"agency-chat-client/internal/chat"
	"agency-chat-client/internal/session"
	"agency-chat-client/internal/store"
	"agency-chat-client/internal/upload"
	"agency-chat-client/internal/view"
	"agency-chat-client/internal/ws"
)

// MsgLoginRequired is shown whenever chat is used without a session.
const MsgLoginRequired = "Bạn cần đăng nhập để trò chuyện"

// Connection exposes the transport state the facade reports.
type Connection interface {
	Connected() bool
}

// ChatHandler serves the local chat surface consumed by host applications.
type ChatHandler struct {
	service  *chat.Service
	store    *store.Store
	conn     Connection
	setupErr error
	log      *zap.Logger
}

// NewChatHandler builds a ChatHandler. setupErr carries the Start failure,
// if any; the facade stays up with the chat inert, mirroring how the host
// page keeps rendering when room setup fails.
func NewChatHandler(service *chat.Service, st *store.Store, conn Connection, setupErr error, log *zap.Logger) *ChatHandler {
	return &ChatHandler{service: service, store: st, conn: conn, setupErr: setupErr, log: log}
}

// Status reports connectivity and pending-send state.
func (h *ChatHandler) Status(c *gin.Context) {
	resp := gin.H{
		"connected":   h.conn.Connected(),
		"pending":     h.store.PendingCount(),
		"active_room": h.service.ActiveRoom(),
	}
	if h.setupErr != nil {
		resp["error"] = userMessage(h.setupErr)
	}
	c.JSON(http.StatusOK, resp)
}

// ListRooms returns the room directory with last-message previews.
func (h *ChatHandler) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.store.Rooms()})
}

// GetRoomMessages returns the room's messages grouped by calendar date.
func (h *ChatHandler) GetRoomMessages(c *gin.Context) {
	roomID := c.Param("room_id")
	groups := view.GroupByDate(h.store.Messages(roomID))
	c.JSON(http.StatusOK, gin.H{"groups": groups})
}

// PostRoomMessage sends a text message into the room.
func (h *ChatHandler) PostRoomMessage(c *gin.Context) {
	if h.setupErr != nil {
		c.JSON(http.StatusConflict, gin.H{"error": userMessage(h.setupErr)})
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.SendText(c.Request.Context(), c.Param("room_id"), req.Text)
	if err != nil {
		c.JSON(sendErrorStatus(err), gin.H{"error": err.Error(), "message": msg})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// PostRoomAttachments uploads the posted image files sequentially and
// sends one message carrying all resulting URLs plus the caption.
func (h *ChatHandler) PostRoomAttachments(c *gin.Context) {
	if h.setupErr != nil {
		c.JSON(http.StatusConflict, gin.H{"error": userMessage(h.setupErr)})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	var files []upload.File
	var closers []func() error
	defer func() {
		for _, close := range closers {
			_ = close()
		}
	}()

	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
			return
		}
		closers = append(closers, f.Close)
		files = append(files, upload.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Reader:      f,
		})
	}

	var progress []int
	msg, rejected, err := h.service.SendImages(c.Request.Context(), c.Param("room_id"),
		c.PostForm("caption"), files, func(pct int) {
			progress = append(progress, pct)
		})

	resp := gin.H{
		"rejected": rejectionList(rejected),
		"progress": progress,
	}
	if err != nil {
		resp["error"] = err.Error()
		c.JSON(sendErrorStatus(err), resp)
		return
	}
	resp["message"] = msg
	c.JSON(http.StatusCreated, resp)
}

func rejectionList(rejected []upload.Rejection) []gin.H {
	list := make([]gin.H, 0, len(rejected))
	for _, r := range rejected {
		list = append(list, gin.H{"name": r.Name, "reason": r.Reason.Error()})
	}
	return list
}

func sendErrorStatus(err error) int {
	switch {
	case errors.Is(err, ws.ErrNotJoined), errors.Is(err, chat.ErrNoValidFiles):
		return http.StatusConflict
	case errors.Is(err, ws.ErrNotConnected):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func userMessage(err error) string {
	if errors.Is(err, session.ErrNoSession) {
		return MsgLoginRequired
	}
	return err.Error()
}
