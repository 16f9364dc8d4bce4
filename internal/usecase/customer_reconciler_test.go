package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/billing-identity/internal/domain/entity"
	domainErrors "github.com/wekeepgrowing/billing-identity/internal/domain/errors"
	"go.uber.org/zap"
)

const (
	testEmail  = "jane@example.com"
	testUserID = "6f1c0c2e-4a7b-4d8e-9f10-2b3c4d5e6f70"
)

func properMetadata(userID string) map[string]string {
	return map[string]string{entity.MetadataUserID: userID}
}

func TestEnsureCustomer_CreatesWhenNothingExists(t *testing.T) {
	dir := newFakeDirectory()
	r := NewCustomerReconciler(dir, zap.NewNop())

	result, err := r.EnsureCustomer(context.Background(), "", testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, entity.ActionCreated, result.Action)
	created := dir.get(result.CustomerID)
	assert.Equal(t, testEmail, created.Email)
	assert.Equal(t, "jane", created.Name)
	assert.Equal(t, testUserID, created.UserID())
	assert.Equal(t, 1, dir.creates)
}

func TestEnsureCustomer_Idempotent(t *testing.T) {
	dir := newFakeDirectory()
	r := NewCustomerReconciler(dir, zap.NewNop())
	ctx := context.Background()

	first, err := r.EnsureCustomer(ctx, "", testEmail, testUserID)
	require.NoError(t, err)

	second, err := r.EnsureCustomer(ctx, first.CustomerID, testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.Equal(t, entity.ActionMatchedByEmail, second.Action)
	assert.False(t, second.Changed(first.CustomerID))
	assert.Equal(t, 1, dir.creates, "second call creates nothing")
	assert.Equal(t, 0, dir.updates, "second call updates nothing")
}

func TestEnsureCustomer_IdempotentAfterGuestMigration(t *testing.T) {
	dir := newFakeDirectory()
	dir.seed(entity.CustomerFields{ID: "cus_guest", Email: testEmail, Name: "Jane Guest"})
	r := NewCustomerReconciler(dir, zap.NewNop())
	ctx := context.Background()

	first, err := r.EnsureCustomer(ctx, "", testEmail, testUserID)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionMigratedGuest, first.Action)
	assert.Equal(t, "cus_guest", first.MigratedFrom)

	second, err := r.EnsureCustomer(ctx, first.CustomerID, testEmail, testUserID)
	require.NoError(t, err)
	assert.Equal(t, first.CustomerID, second.CustomerID)
	assert.Equal(t, 1, dir.creates)
}

func TestEnsureCustomer_GuestMigration(t *testing.T) {
	dir := newFakeDirectory()
	guest := dir.seed(entity.CustomerFields{
		ID:          "cus_guest",
		Email:       "checkout@example.com",
		Phone:       "+66 2 123 4567",
		Description: "Guest customer",
		Address:     &entity.Address{Line1: "1 Main St", City: "Bangkok", Country: "TH"},
		Metadata:    properMetadata(testUserID),
	})
	r := NewCustomerReconciler(dir, zap.NewNop())

	result, err := r.EnsureCustomer(context.Background(), guest.ID, testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, entity.ActionMigratedGuest, result.Action)
	assert.NotEqual(t, guest.ID, result.CustomerID)
	assert.Equal(t, guest.ID, result.MigratedFrom)

	migrated := dir.get(result.CustomerID)
	assert.Equal(t, "checkout@example.com", migrated.Email, "guest email is carried over")
	assert.Equal(t, "jane", migrated.Name, "name falls back to the local part of the user email")
	assert.Equal(t, guest.Phone, migrated.Phone)
	require.NotNil(t, migrated.Address)
	assert.Equal(t, "Bangkok", migrated.Address.City)
	assert.Equal(t, testUserID, migrated.Metadata[entity.MetadataUserID])
	assert.Equal(t, guest.ID, migrated.Metadata[entity.MetadataMigratedFromGuest])
	assert.Equal(t, entity.ClassificationProper, ClassifyFields(migrated))

	assert.Equal(t, guest, dir.get(guest.ID), "guest record is untouched")
	assert.Empty(t, dir.deletes)
}

func TestEnsureCustomer_DeletedMappedCustomerIsMigrated(t *testing.T) {
	dir := newFakeDirectory()
	dir.deleted["cus_deleted"] = true
	r := NewCustomerReconciler(dir, zap.NewNop())

	result, err := r.EnsureCustomer(context.Background(), "cus_deleted", testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, entity.ActionMigratedGuest, result.Action)
	assert.Equal(t, "cus_deleted", result.MigratedFrom)
	migrated := dir.get(result.CustomerID)
	assert.Equal(t, testEmail, migrated.Email, "deleted record has no email, user email is used")
	assert.Equal(t, "jane", migrated.Name)
	assert.Equal(t, "cus_deleted", migrated.Metadata[entity.MetadataMigratedFromGuest])
}

func TestEnsureCustomer_EmailPriority(t *testing.T) {
	dir := newFakeDirectory()
	c1 := dir.seed(entity.CustomerFields{ID: "cus_C1", Email: "old@example.com", Metadata: properMetadata(testUserID)})
	c2 := dir.seed(entity.CustomerFields{ID: "cus_C2", Email: testEmail, Metadata: properMetadata(testUserID)})
	r := NewCustomerReconciler(dir, zap.NewNop())

	result, err := r.EnsureCustomer(context.Background(), c1.ID, testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, c2.ID, result.CustomerID)
	assert.Equal(t, entity.ActionMatchedByEmail, result.Action)
	assert.True(t, result.Changed(c1.ID))
	assert.Equal(t, 0, dir.creates)
}

func TestEnsureCustomer_RepairsMetadataOfEmailMatch(t *testing.T) {
	dir := newFakeDirectory()
	c := dir.seed(entity.CustomerFields{
		ID:    "cus_C",
		Email: testEmail,
		Metadata: map[string]string{
			entity.MetadataUserID: "someone-else",
			"plan":                "pro",
		},
	})
	r := NewCustomerReconciler(dir, zap.NewNop())

	result, err := r.EnsureCustomer(context.Background(), "", testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, c.ID, result.CustomerID)
	assert.Equal(t, entity.ActionRepairedMetadata, result.Action)
	repaired := dir.get(c.ID)
	assert.Equal(t, testUserID, repaired.UserID())
	assert.Equal(t, "pro", repaired.Metadata["plan"], "other metadata is kept")
	assert.Equal(t, 1, dir.updates)
}

func TestEnsureCustomer_StalePointerSelfHeal(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"customer not found", domainErrors.ErrCustomerNotFound},
		{"directory unavailable", domainErrors.NewDirectoryError("retrieve", "cus_gone", errors.New("connection reset"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newFakeDirectory()
			dir.retrieveErr["cus_gone"] = tt.err
			r := NewCustomerReconciler(dir, zap.NewNop())

			result, err := r.EnsureCustomer(context.Background(), "cus_gone", testEmail, testUserID)
			require.NoError(t, err)

			assert.Equal(t, entity.ActionRecreatedStale, result.Action)
			assert.NotEqual(t, "cus_gone", result.CustomerID)
			created := dir.get(result.CustomerID)
			assert.Equal(t, testEmail, created.Email)
			assert.Equal(t, testUserID, created.UserID())
			assert.Equal(t, 1, dir.creates)
		})
	}
}

func TestEnsureCustomer_KeepsProperExisting(t *testing.T) {
	dir := newFakeDirectory()
	existing := dir.seed(entity.CustomerFields{ID: "cus_C1", Email: "old@example.com", Metadata: properMetadata(testUserID)})
	r := NewCustomerReconciler(dir, zap.NewNop())

	result, err := r.EnsureCustomer(context.Background(), existing.ID, testEmail, testUserID)
	require.NoError(t, err)

	assert.Equal(t, existing.ID, result.CustomerID)
	assert.Equal(t, entity.ActionKeptExisting, result.Action)
	assert.Equal(t, 0, dir.creates)
}

func TestEnsureCustomer_Errors(t *testing.T) {
	unavailable := domainErrors.NewDirectoryError("list", "", errors.New("timeout"))

	tests := []struct {
		name       string
		existingID string
		email      string
		userID     string
		mockSetup  func(*MockBillingDirectory)
		expected   error
	}{
		{
			name:      "empty email",
			email:     " ",
			userID:    testUserID,
			mockSetup: func(*MockBillingDirectory) {},
			expected:  domainErrors.ErrInvalidIdentity,
		},
		{
			name:      "empty user id",
			email:     testEmail,
			mockSetup: func(*MockBillingDirectory) {},
			expected:  domainErrors.ErrInvalidIdentity,
		},
		{
			name:   "email lookup failure propagates",
			email:  testEmail,
			userID: testUserID,
			mockSetup: func(dir *MockBillingDirectory) {
				dir.On("FindByEmail", mock.Anything, testEmail).Return(nil, unavailable)
			},
			expected: domainErrors.ErrDirectoryUnavailable,
		},
		{
			name:       "create failure after stale pointer propagates",
			existingID: "cus_gone",
			email:      testEmail,
			userID:     testUserID,
			mockSetup: func(dir *MockBillingDirectory) {
				dir.On("FindByEmail", mock.Anything, testEmail).Return(nil, nil)
				dir.On("RetrieveByID", mock.Anything, "cus_gone").Return(entity.BillingCustomer{}, domainErrors.ErrCustomerNotFound)
				dir.On("Create", mock.Anything, mock.Anything).Return(entity.CustomerFields{}, unavailable)
			},
			expected: domainErrors.ErrDirectoryUnavailable,
		},
		{
			name:   "metadata repair failure propagates",
			email:  testEmail,
			userID: testUserID,
			mockSetup: func(dir *MockBillingDirectory) {
				dir.On("FindByEmail", mock.Anything, testEmail).Return(&entity.CustomerFields{
					ID:       "cus_C",
					Email:    testEmail,
					Metadata: properMetadata("someone-else"),
				}, nil)
				dir.On("UpdateMetadata", mock.Anything, "cus_C", mock.Anything).Return(entity.CustomerFields{}, unavailable)
			},
			expected: domainErrors.ErrDirectoryUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := new(MockBillingDirectory)
			tt.mockSetup(dir)
			r := NewCustomerReconciler(dir, zap.NewNop())

			result, err := r.EnsureCustomer(context.Background(), tt.existingID, tt.email, tt.userID)

			assert.ErrorIs(t, err, tt.expected)
			assert.Empty(t, result.CustomerID)
			dir.AssertExpectations(t)
		})
	}
}
