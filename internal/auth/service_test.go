package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmapos/farmapos/internal/platform/httpx"
	"github.com/farmapos/farmapos/internal/shared"
)

type mockRepository struct {
	operators map[int64]Operator
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{operators: make(map[int64]Operator), nextID: 1}
}

func (m *mockRepository) Create(ctx context.Context, o Operator) (*Operator, error) {
	for _, existing := range m.operators {
		if existing.Username == o.Username {
			return nil, ErrDuplicateUsername
		}
	}
	o.ID = m.nextID
	o.Active = true
	m.nextID++
	m.operators[o.ID] = o
	return &o, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Operator, error) {
	o, ok := m.operators[id]
	if !ok {
		return nil, ErrOperatorNotFound
	}
	return &o, nil
}

func (m *mockRepository) GetByUsername(ctx context.Context, username string) (*Operator, error) {
	for _, o := range m.operators {
		if o.Username == username {
			out := o
			return &out, nil
		}
	}
	return nil, ErrOperatorNotFound
}

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, 30*time.Minute)
	repo := newMockRepository()
	return NewService(repo, sessions), repo
}

func registerOperator(t *testing.T, svc *Service) *Operator {
	t.Helper()
	op, err := svc.Register(context.Background(), CreateOperatorRequest{
		Username: "anacosta",
		Name:     "Ana Costa",
		Password: "correct horse",
	})
	require.NoError(t, err)
	return op
}

func TestRegisterHashesPassword(t *testing.T) {
	svc, repo := newTestService(t)
	op := registerOperator(t, svc)

	stored := repo.operators[op.ID]
	assert.NotEqual(t, "correct horse", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.Register(context.Background(), CreateOperatorRequest{
			Username: "bob1",
			Name:     "Bob",
			Password: "short",
		})
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		_, err := svc.Register(context.Background(), CreateOperatorRequest{
			Username: "anacosta",
			Name:     "Another Ana",
			Password: "correct horse",
		})
		assert.ErrorIs(t, err, ErrDuplicateUsername)
	})
}

func TestLogin(t *testing.T) {
	login := func(svc *Service, password string) (*shared.Session, *Operator, error) {
		return svc.Login(context.Background(), LoginRequest{Username: "anacosta", Password: password})
	}

	t.Run("valid credentials issue a session", func(t *testing.T) {
		svc, _ := newTestService(t)
		op := registerOperator(t, svc)

		sess, operator, err := login(svc, "correct horse")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, op.ID, sess.OperatorID)
		assert.Equal(t, "Ana Costa", sess.OperatorName)
		assert.Equal(t, op.ID, operator.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerOperator(t, svc)
		_, _, err := login(svc, "wrong password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown username looks like a wrong password", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, _, err := svc.Login(context.Background(), LoginRequest{Username: "nobody", Password: "whatever"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("inactive operator", func(t *testing.T) {
		svc, repo := newTestService(t)
		op := registerOperator(t, svc)
		stored := repo.operators[op.ID]
		stored.Active = false
		repo.operators[op.ID] = stored

		_, _, err := login(svc, "correct horse")
		assert.ErrorIs(t, err, ErrOperatorInactive)
	})
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _ := newTestService(t)
	registerOperator(t, svc)

	sess, _, err := svc.Login(context.Background(), LoginRequest{Username: "anacosta", Password: "correct horse"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), sess.Token))
	require.NoError(t, svc.Logout(context.Background(), sess.Token), "logout is idempotent")
}
