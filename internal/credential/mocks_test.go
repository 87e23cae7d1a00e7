package credential_test

import (
	"context"
	"sync/atomic"

	"github.com/jcodog/Cleo-Dashboard-sub001/domain"
	"github.com/stretchr/testify/mock"
)

type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) Find(ctx context.Context, userID string, provider domain.ProviderID) (*domain.ProviderCredential, error) {
	args := m.Called(ctx, userID, provider)
	cred, _ := args.Get(0).(*domain.ProviderCredential)
	return cred, args.Error(1)
}

func (m *MockCredentialRepository) Upsert(ctx context.Context, cred *domain.ProviderCredential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

func (m *MockCredentialRepository) Delete(ctx context.Context, userID string, provider domain.ProviderID) error {
	args := m.Called(ctx, userID, provider)
	return args.Error(0)
}

func (m *MockCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.ProviderCredential, error) {
	args := m.Called(ctx, userID)
	creds, _ := args.Get(0).([]*domain.ProviderCredential)
	return creds, args.Error(1)
}

// countingLocker records acquisitions and never blocks.
type countingLocker struct {
	acquired atomic.Int32
	released atomic.Int32
}

func (l *countingLocker) Acquire(context.Context, string) (func(), error) {
	l.acquired.Add(1)
	return func() { l.released.Add(1) }, nil
}
