package mocks

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/phrazzld/storefront-accounts/internal/domain"
	"github.com/phrazzld/storefront-accounts/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockAccountStore is a mock of store.AccountStore for use with testify/mock.
type MockAccountStore struct {
	mock.Mock
}

var _ store.AccountStore = (*MockAccountStore)(nil)

// Create is a mock implementation of store.AccountStore.Create
func (m *MockAccountStore) Create(ctx context.Context, account *domain.Account) (uuid.UUID, error) {
	args := m.Called(ctx, account)
	if id, ok := args.Get(0).(uuid.UUID); ok {
		return id, args.Error(1)
	}
	return uuid.Nil, args.Error(1)
}

// FindByUserID is a mock implementation of store.AccountStore.FindByUserID
func (m *MockAccountStore) FindByUserID(ctx context.Context, userID uuid.UUID) ([]*domain.Account, error) {
	args := m.Called(ctx, userID)
	if accounts, ok := args.Get(0).([]*domain.Account); ok {
		return accounts, args.Error(1)
	}
	return nil, args.Error(1)
}

// WithTx returns the mock itself so expectations carry into transactions.
func (m *MockAccountStore) WithTx(tx *sql.Tx) store.AccountStore {
	return m
}

// MockAddressStore is a mock of store.AddressStore for use with testify/mock.
type MockAddressStore struct {
	mock.Mock
}

var _ store.AddressStore = (*MockAddressStore)(nil)

// ListByUserID is a mock implementation of store.AddressStore.ListByUserID
func (m *MockAddressStore) ListByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Address, error) {
	args := m.Called(ctx, userID)
	if addresses, ok := args.Get(0).([]domain.Address); ok {
		return addresses, args.Error(1)
	}
	return nil, args.Error(1)
}
