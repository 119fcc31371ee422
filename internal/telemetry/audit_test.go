package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"agency-chat-client/internal/mocks"
)

func TestEmitPublishesEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	var captured AuditEnvelope
	pub.On("Publish", mock.Anything, "audit.chat_client", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(AuditEnvelope)
		}).Return(nil).Once()

	userID := "u1"
	emitter := NewAuditEmitter(pub, "audit.chat_client", "agency-chat-client", "test", zap.NewNop())
	emitter.Emit(context.Background(), "INFO", "room opened", "req-1", &userID)

	pub.AssertExpectations(t)
	assert.Equal(t, 1, captured.SchemaVersion)
	assert.Equal(t, "audit_log", captured.EventType)
	assert.Equal(t, "req-1", captured.RequestID)
	require.NotNil(t, captured.UserID)
	assert.Equal(t, "u1", *captured.UserID)
	assert.Equal(t, "INFO", captured.Payload.Level)
}

func TestEmitToleratesPublishFailure(t *testing.T) {
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("broker down")).Once()

	emitter := NewAuditEmitter(pub, "audit.chat_client", "agency-chat-client", "test", zap.NewNop())
	emitter.Emit(context.Background(), "ERROR", "send failed", "req-2", nil)

	pub.AssertExpectations(t)
}

func TestEmitNilReceiverIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "req-3", nil)
}
