package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"agency-chat-client/internal/models"
)

type BackendAPIMock struct {
	mock.Mock
}

func (m *BackendAPIMock) ResolveManager(ctx context.Context) (models.Manager, error) {
	args := m.Called(ctx)
	var manager models.Manager
	if val := args.Get(0); val != nil {
		manager = val.(models.Manager)
	}
	return manager, args.Error(1)
}

func (m *BackendAPIMock) ListRooms(ctx context.Context) ([]models.ChatRoom, error) {
	args := m.Called(ctx)
	var rooms []models.ChatRoom
	if val := args.Get(0); val != nil {
		rooms = val.([]models.ChatRoom)
	}
	return rooms, args.Error(1)
}

func (m *BackendAPIMock) CreateRoom(ctx context.Context, memberIDs []string) (models.ChatRoom, error) {
	args := m.Called(ctx, memberIDs)
	var room models.ChatRoom
	if val := args.Get(0); val != nil {
		room = val.(models.ChatRoom)
	}
	return room, args.Error(1)
}

func (m *BackendAPIMock) GetMessages(ctx context.Context, roomID string, skip, take int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, roomID, skip, take)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

type TransportMock struct {
	mock.Mock
}

func (m *TransportMock) Join(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *TransportMock) Leave(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *TransportMock) Send(roomID, clientID, text string, fileURLs, publicIDs []string) error {
	args := m.Called(roomID, clientID, text, fileURLs, publicIDs)
	return args.Error(0)
}

func (m *TransportMock) Connected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *TransportMock) Joined(roomID string) bool {
	args := m.Called(roomID)
	return args.Bool(0)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) UploadFile(ctx context.Context, name, contentType string, r io.Reader) (models.UploadResult, error) {
	args := m.Called(ctx, name, contentType, r)
	var result models.UploadResult
	if val := args.Get(0); val != nil {
		result = val.(models.UploadResult)
	}
	return result, args.Error(1)
}
