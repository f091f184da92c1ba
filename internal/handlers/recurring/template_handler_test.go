package recurring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/auth"
	"github.com/merchantpay/billing-service/internal/domain"
	domainports "github.com/merchantpay/billing-service/internal/domain/ports"
	"github.com/merchantpay/billing-service/internal/services/ports"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// MockTemplateService mocks the template service
type MockTemplateService struct {
	mock.Mock
}

func (m *MockTemplateService) CreateTemplate(ctx context.Context, req ports.CreateTemplateRequest) (*domain.RecurringTemplate, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateService) GetTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	args := m.Called(ctx, merchantID, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateService) ListTemplates(ctx context.Context, merchantID string, filter domainports.TemplateListFilter) ([]*domain.RecurringTemplate, error) {
	args := m.Called(ctx, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateService) UpdateTemplate(ctx context.Context, req ports.UpdateTemplateRequest) (*domain.RecurringTemplate, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateService) PauseTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	args := m.Called(ctx, merchantID, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateService) ResumeTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	args := m.Called(ctx, merchantID, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateService) CancelTemplate(ctx context.Context, merchantID, templateID string) error {
	args := m.Called(ctx, merchantID, templateID)
	return args.Error(0)
}

// MockInvoiceRepository mocks the invoice repository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, tx domainports.DBTX, invoice *domain.Invoice) error {
	args := m.Called(ctx, tx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, db domainports.DBTX, merchantID, invoiceID string) (*domain.Invoice, error) {
	args := m.Called(ctx, db, merchantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) ListByTemplate(ctx context.Context, db domainports.DBTX, merchantID, templateID string, offset, limit int) ([]*domain.Invoice, error) {
	args := m.Called(ctx, db, merchantID, templateID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Invoice), args.Error(1)
}

func sampleTemplate() *domain.RecurringTemplate {
	return &domain.RecurringTemplate{
		ID:                 "tpl-1",
		MerchantID:         "MERCH123",
		CustomerID:         "cust-1",
		Amount:             decimal.RequireFromString("500.00"),
		DayOfMonth:         10,
		DueDateOffset:      7,
		StartDate:          timeutil.Date(2025, time.June, 10),
		NextGenerationDate: timeutil.Date(2025, time.July, 10),
		IsActive:           true,
		Frequency:          domain.FrequencyMonthly,
		CreatedAt:          timeutil.Date(2025, time.June, 1),
		UpdatedAt:          timeutil.Date(2025, time.June, 1),
	}
}

// serve routes the request through the handler's mux with an authenticated
// merchant on the context.
func serve(t *testing.T, svc *MockTemplateService, invoiceRepo *MockInvoiceRepository, req *http.Request, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()

	handler := NewTemplateHandler(svc, invoiceRepo, zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	if authenticated {
		req = req.WithContext(auth.WithMerchantID(req.Context(), "MERCH123"))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestTemplateHandler_Create(t *testing.T) {
	svc := new(MockTemplateService)

	svc.On("CreateTemplate", mock.Anything, mock.MatchedBy(func(req ports.CreateTemplateRequest) bool {
		return req.MerchantID == "MERCH123" &&
			req.CustomerID == "cust-1" &&
			req.DayOfMonth == 10 &&
			req.Amount.Equal(decimal.RequireFromString("500.00"))
	})).Return(sampleTemplate(), nil)

	body := strings.NewReader(`{
		"customer_id": "cust-1",
		"amount": "500.00",
		"day_of_month": 10,
		"start_date": "2025-06-10"
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recurring-invoices", body)

	rec := serve(t, svc, new(MockInvoiceRepository), req, true)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp templateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tpl-1", resp.ID)
	assert.Equal(t, "500.00", resp.Amount)
	assert.Equal(t, "2025-07-10", resp.NextGenerationDate)
	svc.AssertExpectations(t)
}

func TestTemplateHandler_Create_Unauthenticated(t *testing.T) {
	svc := new(MockTemplateService)

	body := strings.NewReader(`{"customer_id": "cust-1", "amount": "500.00", "day_of_month": 10, "start_date": "2025-06-10"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recurring-invoices", body)

	rec := serve(t, svc, new(MockInvoiceRepository), req, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "CreateTemplate", mock.Anything, mock.Anything)
}

func TestTemplateHandler_Create_InvalidBody(t *testing.T) {
	svc := new(MockTemplateService)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing customer", `{"amount": "500.00", "day_of_month": 10, "start_date": "2025-06-10"}`},
		{"day out of range", `{"customer_id": "c", "amount": "500.00", "day_of_month": 32, "start_date": "2025-06-10"}`},
		{"bad amount", `{"customer_id": "c", "amount": "abc", "day_of_month": 10, "start_date": "2025-06-10"}`},
		{"bad start date", `{"customer_id": "c", "amount": "500.00", "day_of_month": 10, "start_date": "10/06/2025"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/recurring-invoices", strings.NewReader(tt.body))
			rec := serve(t, svc, new(MockInvoiceRepository), req, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	svc.AssertNotCalled(t, "CreateTemplate", mock.Anything, mock.Anything)
}

func TestTemplateHandler_Get_NotFound(t *testing.T) {
	svc := new(MockTemplateService)

	svc.On("GetTemplate", mock.Anything, "MERCH123", "missing").
		Return(nil, domain.NewDomainError(domain.ErrorCodeTemplateNotFound, "recurring invoice template not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recurring-invoices/missing", nil)
	rec := serve(t, svc, new(MockInvoiceRepository), req, true)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateHandler_List_WithFilter(t *testing.T) {
	svc := new(MockTemplateService)

	svc.On("ListTemplates", mock.Anything, "MERCH123", mock.MatchedBy(func(f domainports.TemplateListFilter) bool {
		return f.IsActive != nil && *f.IsActive && f.Limit == 10 && f.Offset == 20
	})).Return([]*domain.RecurringTemplate{sampleTemplate()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recurring-invoices?is_active=true&limit=10&offset=20", nil)
	rec := serve(t, svc, new(MockInvoiceRepository), req, true)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []templateResponse `json:"items"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	svc.AssertExpectations(t)
}

func TestTemplateHandler_Update(t *testing.T) {
	svc := new(MockTemplateService)

	updated := sampleTemplate()
	updated.Amount = decimal.RequireFromString("750.00")

	svc.On("UpdateTemplate", mock.Anything, mock.MatchedBy(func(req ports.UpdateTemplateRequest) bool {
		return req.TemplateID == "tpl-1" && req.Amount != nil && req.Amount.Equal(decimal.RequireFromString("750.00"))
	})).Return(updated, nil)

	body := strings.NewReader(`{"amount": "750.00"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/recurring-invoices/tpl-1", body)
	rec := serve(t, svc, new(MockInvoiceRepository), req, true)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp templateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "750.00", resp.Amount)
}

func TestTemplateHandler_PauseAndResume(t *testing.T) {
	svc := new(MockTemplateService)

	paused := sampleTemplate()
	paused.IsActive = false
	svc.On("PauseTemplate", mock.Anything, "MERCH123", "tpl-1").Return(paused, nil)
	svc.On("ResumeTemplate", mock.Anything, "MERCH123", "tpl-1").Return(sampleTemplate(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recurring-invoices/tpl-1/pause", nil)
	rec := serve(t, svc, new(MockInvoiceRepository), req, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp templateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.IsActive)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/recurring-invoices/tpl-1/resume", nil)
	rec = serve(t, svc, new(MockInvoiceRepository), req, true)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.IsActive)
}

func TestTemplateHandler_Cancel(t *testing.T) {
	svc := new(MockTemplateService)

	svc.On("CancelTemplate", mock.Anything, "MERCH123", "tpl-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/recurring-invoices/tpl-1", nil)
	rec := serve(t, svc, new(MockInvoiceRepository), req, true)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestTemplateHandler_ListInvoices(t *testing.T) {
	svc := new(MockTemplateService)
	invoiceRepo := new(MockInvoiceRepository)

	templateID := "tpl-1"
	svc.On("GetTemplate", mock.Anything, "MERCH123", "tpl-1").Return(sampleTemplate(), nil)
	invoiceRepo.On("ListByTemplate", mock.Anything, nil, "MERCH123", "tpl-1", 0, 50).
		Return([]*domain.Invoice{
			{
				ID:                  "inv-1",
				MerchantID:          "MERCH123",
				CustomerID:          "cust-1",
				RecurringTemplateID: &templateID,
				Amount:              decimal.RequireFromString("500.00"),
				DueDate:             timeutil.Date(2025, time.June, 17),
				Status:              domain.InvoiceStatusUnpaid,
				CreatedAt:           timeutil.Date(2025, time.June, 10),
			},
		}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/recurring-invoices/tpl-1/invoices", nil)
	rec := serve(t, svc, invoiceRepo, req, true)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []invoiceResponse `json:"items"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "inv-1", resp.Items[0].ID)
	assert.Equal(t, "UNPAID", resp.Items[0].Status)
	assert.Equal(t, "2025-06-17", resp.Items[0].DueDate)
}
