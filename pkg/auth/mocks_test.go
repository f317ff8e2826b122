package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockIdentityStorage is a mock implementation of IdentityStorage.
type MockIdentityStorage struct {
	mock.Mock
}

func (m *MockIdentityStorage) FindByEmail(ctx context.Context, email string) (*Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockIdentityStorage) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockIdentityStorage) UpsertByProvider(ctx context.Context, identity ProviderIdentity) (*Account, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockIdentityStorage) AttachProvider(ctx context.Context, accountID uuid.UUID, identity ProviderIdentity) (*Account, error) {
	args := m.Called(ctx, accountID, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

// MockProviderAdapter is a mock implementation of ProviderAdapter.
type MockProviderAdapter struct {
	mock.Mock
	provider Provider
}

func (m *MockProviderAdapter) ProviderID() Provider {
	return m.provider
}

func (m *MockProviderAdapter) AuthCodeURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockProviderAdapter) ResolveIdentity(ctx context.Context, code string) (ProviderIdentity, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(ProviderIdentity), args.Error(1)
}

// MockReplayGuard is a mock implementation of ReplayGuard.
type MockReplayGuard struct {
	mock.Mock
}

func (m *MockReplayGuard) Consume(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}
