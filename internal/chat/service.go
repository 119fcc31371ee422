package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agency-chat-client/internal/models"
	"agency-chat-client/internal/session"
	"agency-chat-client/internal/store"
	"agency-chat-client/internal/upload"
)

var (
	// ErrNoValidFiles is returned when every file in an attachment batch
	// failed validation.
	ErrNoValidFiles = errors.New("không có tập tin hợp lệ để tải lên")
	// ErrNotStarted is returned for operations on a client whose room
	// setup has not completed.
	ErrNotStarted = errors.New("chat client not started")
)

// BackendAPI is the slice of the REST surface the chat flow needs.
type BackendAPI interface {
	ResolveManager(ctx context.Context) (models.Manager, error)
	ListRooms(ctx context.Context) ([]models.ChatRoom, error)
	CreateRoom(ctx context.Context, memberIDs []string) (models.ChatRoom, error)
	GetMessages(ctx context.Context, roomID string, skip, take int) ([]models.ChatMessage, error)
}

// Transport is the hub connection the service invokes operations on.
type Transport interface {
	Join(roomID string) error
	Leave(roomID string) error
	Send(roomID, clientID, text string, fileURLs, publicIDs []string) error
	Connected() bool
	Joined(roomID string) bool
}

// Service owns the chat client flow: session gating, manager and room
// resolution, optimistic sends and the attachment pipeline.
type Service struct {
	sess      session.Session
	api       BackendAPI
	transport Transport
	store     *store.Store
	pipeline  *upload.Pipeline
	log       *zap.Logger

	pageSize    int
	uploadLimit int64
	pendingTTL  time.Duration

	mu         sync.Mutex
	activeRoom string
}

// NewService wires the chat flow together.
func NewService(sess session.Session, api BackendAPI, transport Transport, st *store.Store,
	pipeline *upload.Pipeline, pageSize int, uploadLimit int64, pendingTTL time.Duration, log *zap.Logger) *Service {
	return &Service{
		sess:        sess,
		api:         api,
		transport:   transport,
		store:       st,
		pipeline:    pipeline,
		pageSize:    pageSize,
		uploadLimit: uploadLimit,
		pendingTTL:  pendingTTL,
		log:         log,
	}
}

// Start resolves the assigned manager and the shared room (creating it if
// absent), loads history and joins the room. Without a valid session
// nothing touches the network and ErrNoSession is returned; the host keeps
// running with the chat inert.
func (s *Service) Start(ctx context.Context) error {
	if !s.sess.Valid() {
		return session.ErrNoSession
	}

	manager, err := s.api.ResolveManager(ctx)
	if err != nil {
		return fmt.Errorf("resolve manager: %w", err)
	}
	if _, err := uuid.Parse(manager.ID); err != nil {
		return fmt.Errorf("manager id %q is not a guid: %w", manager.ID, err)
	}

	room, err := s.resolveRoom(ctx, manager)
	if err != nil {
		return fmt.Errorf("resolve room: %w", err)
	}

	if err := s.loadHistory(ctx, room.ID); err != nil {
		return err
	}
	if err := s.transport.Join(room.ID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	s.mu.Lock()
	s.activeRoom = room.ID
	s.mu.Unlock()

	s.log.Info("chat ready",
		zap.String("room_id", room.ID),
		zap.String("manager_id", manager.ID))
	return nil
}

// resolveRoom finds the existing room shared with the manager, creating
// one when the two parties have never messaged each other.
func (s *Service) resolveRoom(ctx context.Context, manager models.Manager) (models.ChatRoom, error) {
	rooms, err := s.api.ListRooms(ctx)
	if err != nil {
		return models.ChatRoom{}, err
	}
	s.store.SetRooms(rooms)

	for _, room := range rooms {
		if room.HasMember(s.sess.UserID) && room.HasMember(manager.ID) {
			return room, nil
		}
	}

	room, err := s.api.CreateRoom(ctx, []string{s.sess.UserID, manager.ID})
	if err != nil {
		return models.ChatRoom{}, err
	}
	s.store.UpsertRoom(room)
	return room, nil
}

func (s *Service) loadHistory(ctx context.Context, roomID string) error {
	msgs, err := s.api.GetMessages(ctx, roomID, 0, s.pageSize)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	s.store.ReplaceHistory(roomID, msgs)
	return nil
}

// OpenRoom switches the active room: the previous subscription is left,
// history for the new room replaces the list wholesale, and the new room
// is joined on the same connection.
func (s *Service) OpenRoom(ctx context.Context, roomID string) error {
	s.mu.Lock()
	previous := s.activeRoom
	s.mu.Unlock()

	if previous != "" && previous != roomID {
		if err := s.transport.Leave(previous); err != nil {
			s.log.Warn("leave room failed", zap.String("room_id", previous), zap.Error(err))
		}
	}

	if err := s.loadHistory(ctx, roomID); err != nil {
		return err
	}
	if err := s.transport.Join(roomID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	s.mu.Lock()
	s.activeRoom = roomID
	s.mu.Unlock()
	return nil
}

// ActiveRoom returns the currently open room id, empty before Start.
func (s *Service) ActiveRoom() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeRoom
}

// SendText renders the message optimistically, then invokes the hub send.
// A failed invoke marks the optimistic copy failed and is returned to the
// caller.
func (s *Service) SendText(ctx context.Context, roomID, text string) (models.ChatMessage, error) {
	msg := s.store.AppendLocal(models.ChatMessage{
		RoomID:     roomID,
		SenderName: s.sess.Name,
		Text:       text,
	})

	if err := s.transport.Send(roomID, msg.ClientID, text, nil, nil); err != nil {
		s.store.MarkFailed(roomID, msg.ClientID)
		return msg, err
	}
	return msg, nil
}

// SendImages validates the batch, uploads the valid files sequentially and
// sends ONE message carrying every resulting URL plus the caption. The
// message is rendered optimistically before the hub confirms it, exactly
// like a text send.
func (s *Service) SendImages(ctx context.Context, roomID, caption string, files []upload.File,
	onProgress func(int)) (models.ChatMessage, []upload.Rejection, error) {

	valid, rejected := upload.ValidateBatch(files, s.uploadLimit)
	if len(valid) == 0 {
		return models.ChatMessage{}, rejected, ErrNoValidFiles
	}

	results, err := s.pipeline.Run(ctx, valid, onProgress)
	if err != nil {
		return models.ChatMessage{}, rejected, err
	}

	urls := make([]string, 0, len(results))
	publicIDs := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.ImageURL)
		publicIDs = append(publicIDs, r.PublicID)
	}

	msg := s.store.AppendLocal(models.ChatMessage{
		RoomID:     roomID,
		SenderName: s.sess.Name,
		Text:       caption,
		ImageURLs:  urls,
	})

	if err := s.transport.Send(roomID, msg.ClientID, caption, urls, publicIDs); err != nil {
		s.store.MarkFailed(roomID, msg.ClientID)
		return msg, rejected, err
	}
	return msg, rejected, nil
}

// HandlePush folds a hub push event into the store.
func (s *Service) HandlePush(p models.MessagePayload) {
	s.store.ApplyPush(p)
}

// HandleAck confirms an optimistic message with its server id.
func (s *Service) HandleAck(ack models.Ack) {
	if !s.store.Confirm(ack) {
		s.log.Debug("ack for unknown client id", zap.String("client_id", ack.ClientID))
	}
}

// RunSweeper evicts stale pending entries until ctx is done.
func (s *Service) RunSweeper(ctx context.Context) {
	interval := s.pendingTTL / 2
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.store.Sweep(now)
		}
	}
}
