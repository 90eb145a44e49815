package accounts

import (
	"context"
	"errors"
	"testing"

	"notekeeper/internal/apperr"
	"notekeeper/internal/repository"
	"notekeeper/internal/repository/memory"
	svc "notekeeper/internal/service"
	"notekeeper/internal/service/notes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockNoteService - мок сервиса заметок для проверки каскадного удаления.
// Остальные методы не вызываются сервисом аккаунтов.
type mockNoteService struct {
	svc.NoteService
	deleteAllFunc func(ctx context.Context, ownerID string) (int64, error)
}

func (m *mockNoteService) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	if m.deleteAllFunc != nil {
		return m.deleteAllFunc(ctx, ownerID)
	}
	return 0, nil
}

func newService(t *testing.T) (svc.AccountService, svc.NoteService, repository.Store) {
	t.Helper()
	store := memory.NewRepository()
	noteSvc := notes.NewNoteService(store)
	return NewAccountService(store, noteSvc, zap.NewNop()), noteSvc, store
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	account, err := service.Register(ctx, "  Alice@Example.com ", "hash")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "alice@example.com", account.Email)

	found, err := service.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, account, found)
}

func TestAccountService_Register_Validation(t *testing.T) {
	service, _, _ := newService(t)

	_, err := service.Register(context.Background(), "not-an-email", "hash")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = service.Register(context.Background(), "alice@example.com", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAccountService_Register_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	service, _, store := newService(t)

	_, err := service.Register(ctx, "alice@example.com", "hash")
	require.NoError(t, err)

	_, err = service.Register(ctx, "Alice@Example.com", "other")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	records, err := store.Read(ctx, repository.KindAccount, repository.Criteria{repository.FieldEmail: "alice@example.com"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAccountService_ChangeEmail(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	alice, err := service.Register(ctx, "alice@example.com", "hash")
	require.NoError(t, err)
	_, err = service.Register(ctx, "bob@example.com", "hash")
	require.NoError(t, err)

	_, err = service.ChangeEmail(ctx, alice.ID, "bob@example.com")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Собственный email не конфликтует сам с собой
	same, err := service.ChangeEmail(ctx, alice.ID, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", same.Email)

	changed, err := service.ChangeEmail(ctx, alice.ID, "alice@work.example")
	require.NoError(t, err)
	assert.Equal(t, "alice@work.example", changed.Email)

	got, err := service.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@work.example", got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
}

func TestAccountService_ChangeEmail_DuplicatesFromRace(t *testing.T) {
	ctx := context.Background()
	service, _, store := newService(t)

	// Две записи с одним email, как после гонки двух регистраций
	first, err := store.Create(ctx, repository.KindAccount, repository.Record{
		repository.FieldEmail:        "shared@example.com",
		repository.FieldPasswordHash: "h1",
	})
	require.NoError(t, err)
	second, err := store.Create(ctx, repository.KindAccount, repository.Record{
		repository.FieldEmail:        "shared@example.com",
		repository.FieldPasswordHash: "h2",
	})
	require.NoError(t, err)

	for _, id := range []string{first.ID(), second.ID()} {
		_, err = service.ChangeEmail(ctx, id, "Shared@Example.com")
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}

	_, err = service.Register(ctx, "shared@example.com", "h3")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAccountService_ChangePasswordHash(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newService(t)

	alice, err := service.Register(ctx, "alice@example.com", "old")
	require.NoError(t, err)

	require.NoError(t, service.ChangePasswordHash(ctx, alice.ID, "new"))

	got, err := service.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)

	assert.ErrorIs(t, service.ChangePasswordHash(ctx, alice.ID, ""), apperr.ErrValidation)
}

func TestAccountService_Delete_RemovesNotesFirst(t *testing.T) {
	ctx := context.Background()
	service, noteSvc, _ := newService(t)

	alice, err := service.Register(ctx, "alice@example.com", "hash")
	require.NoError(t, err)
	bob, err := service.Register(ctx, "bob@example.com", "hash")
	require.NoError(t, err)

	for _, name := range []string{"Errands", "Work"} {
		_, err := noteSvc.Create(ctx, alice.ID, name, "x")
		require.NoError(t, err)
	}
	_, err = noteSvc.Create(ctx, bob.ID, "Errands", "y")
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, alice.ID))

	_, err = service.Get(ctx, alice.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	left, err := noteSvc.List(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := noteSvc.List(ctx, bob.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestAccountService_Delete_KeepsAccountOnNotesFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRepository()

	bulk := &apperr.BulkError{Removed: 1}
	bulk.Add("n2", apperr.Unavailable("delete", errors.New("timeout")))

	var calledFor string
	noteSvc := &mockNoteService{
		deleteAllFunc: func(_ context.Context, ownerID string) (int64, error) {
			calledFor = ownerID
			return 1, bulk
		},
	}
	service := NewAccountService(store, noteSvc, zap.NewNop())

	alice, err := service.Register(ctx, "alice@example.com", "hash")
	require.NoError(t, err)

	err = service.Delete(ctx, alice.ID)
	var got *apperr.BulkError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, alice.ID, calledFor)

	still, err := service.Get(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, still.ID)
}

func TestAccountService_Delete_Unknown(t *testing.T) {
	service, _, _ := newService(t)

	err := service.Delete(context.Background(), "7f2c1b5e-8d4a-4c3b-9e1f-0a2b3c4d5e6f")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
