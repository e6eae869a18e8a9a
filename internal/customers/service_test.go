package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmapos/farmapos/internal/platform/httpx"
)

type mockRepository struct {
	customers map[int64]Customer
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{customers: make(map[int64]Customer), nextID: 1}
}

func (m *mockRepository) Create(ctx context.Context, c Customer) (*Customer, error) {
	c.ID = m.nextID
	c.Active = true
	m.nextID++
	m.customers[c.ID] = c
	return &c, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *mockRepository) GetByDocument(ctx context.Context, document string) (*Customer, error) {
	for _, c := range m.customers {
		if c.Document == document {
			out := c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepository) Update(ctx context.Context, id int64, updates map[string]any) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["phone"]; ok {
		c.Phone = v.(string)
	}
	if v, ok := updates["active"]; ok {
		c.Active = v.(bool)
	}
	m.customers[id] = c
	return &c, nil
}

func (m *mockRepository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var out []Customer
	for _, c := range m.customers {
		out = append(out, c)
	}
	return out, len(out), nil
}

func validCreateRequest() CreateCustomerRequest {
	return CreateCustomerRequest{
		Name:     "Maria Souza",
		Document: "123.456.789-00",
		Phone:    "+55 11 91234-5678",
		Email:    "maria@example.com",
		Address:  "Rua das Flores 10",
	}
}

func TestCreateCustomer(t *testing.T) {
	svc := NewService(newMockRepository())

	c, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", c.Name)
	assert.True(t, c.Active)

	t.Run("duplicate document rejected", func(t *testing.T) {
		req := validCreateRequest()
		req.Name = "Maria S. Souza"
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrDuplicateDocument)
	})

	t.Run("missing document rejected", func(t *testing.T) {
		req := validCreateRequest()
		req.Document = ""
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})

	t.Run("malformed email rejected", func(t *testing.T) {
		req := validCreateRequest()
		req.Document = "987.654.321-00"
		req.Email = "not-an-email"
		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, httpx.ErrValidation)
	})
}

func TestUpdateCustomer(t *testing.T) {
	svc := NewService(newMockRepository())
	created, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	name := "Maria de Souza"
	inactive := false
	updated, err := svc.Update(context.Background(), created.ID, UpdateCustomerRequest{Name: &name, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.False(t, updated.Active)
	assert.Equal(t, created.Document, updated.Document, "document is immutable through update")

	_, err = svc.Update(context.Background(), 404, UpdateCustomerRequest{Name: &name})
	assert.ErrorIs(t, err, ErrNotFound)
}
