package mocks

import (
	"context"

	"github.com/phrazzld/storefront-accounts/internal/events"
	"github.com/phrazzld/storefront-accounts/internal/platform/mailer"
	"github.com/stretchr/testify/mock"
)

// MockSender is a mock of mailer.Sender for use with testify/mock.
type MockSender struct {
	mock.Mock
}

var _ mailer.Sender = (*MockSender)(nil)

// Send is a mock implementation of mailer.Sender.Send
func (m *MockSender) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockEventEmitter is a mock of events.EventEmitter for use with testify/mock.
type MockEventEmitter struct {
	mock.Mock
}

var _ events.EventEmitter = (*MockEventEmitter)(nil)

// EmitEvent is a mock implementation of events.EventEmitter.EmitEvent
func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.AccountEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
