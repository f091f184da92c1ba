package template

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/internal/domain/ports"
	serviceports "github.com/merchantpay/billing-service/internal/services/ports"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// MockDBPort mocks the database port
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	// Execute the function with nil transaction for testing
	return fn(ctx, nil)
}

// MockTemplateRepository mocks the template repository
type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) Create(ctx context.Context, tx ports.DBTX, template *domain.RecurringTemplate) error {
	args := m.Called(ctx, tx, template)
	return args.Error(0)
}

func (m *MockTemplateRepository) GetByID(ctx context.Context, db ports.DBTX, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	args := m.Called(ctx, db, merchantID, templateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateRepository) List(ctx context.Context, db ports.DBTX, merchantID string, filter ports.TemplateListFilter) ([]*domain.RecurringTemplate, error) {
	args := m.Called(ctx, db, merchantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateRepository) Update(ctx context.Context, tx ports.DBTX, template *domain.RecurringTemplate) error {
	args := m.Called(ctx, tx, template)
	return args.Error(0)
}

func (m *MockTemplateRepository) ListDueForGeneration(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*domain.RecurringTemplate, error) {
	args := m.Called(ctx, db, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RecurringTemplate), args.Error(1)
}

func (m *MockTemplateRepository) AdvanceSchedule(ctx context.Context, tx ports.DBTX, templateID string, from, to time.Time, deactivate bool) error {
	args := m.Called(ctx, tx, templateID, from, to, deactivate)
	return args.Error(0)
}

func (m *MockTemplateRepository) Deactivate(ctx context.Context, tx ports.DBTX, templateID string) error {
	args := m.Called(ctx, tx, templateID)
	return args.Error(0)
}

// MockCustomerRepository mocks the customer repository
type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, db ports.DBTX, merchantID, customerID string) (*domain.Customer, error) {
	args := m.Called(ctx, db, merchantID, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

// MockLogger mocks the logger
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(msg string, fields ...ports.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Warn(msg string, fields ...ports.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Error(msg string, fields ...ports.Field) {
	m.Called(msg, fields)
}

func (m *MockLogger) Debug(msg string, fields ...ports.Field) {
	m.Called(msg, fields)
}

func newServiceWithMocks() (*Service, *MockDBPort, *MockTemplateRepository, *MockCustomerRepository) {
	mockDB := new(MockDBPort)
	mockTemplateRepo := new(MockTemplateRepository)
	mockCustomerRepo := new(MockCustomerRepository)
	mockLogger := new(MockLogger)
	mockLogger.On("Info", mock.Anything, mock.Anything).Return().Maybe()
	mockLogger.On("Warn", mock.Anything, mock.Anything).Return().Maybe()
	mockLogger.On("Error", mock.Anything, mock.Anything).Return().Maybe()

	svc := NewService(mockDB, mockTemplateRepo, mockCustomerRepo, mockLogger)
	return svc, mockDB, mockTemplateRepo, mockCustomerRepo
}

func storedTemplate() *domain.RecurringTemplate {
	return &domain.RecurringTemplate{
		ID:                 "tpl-1",
		MerchantID:         "MERCH123",
		CustomerID:         "cust-1",
		Amount:             decimal.RequireFromString("500.00"),
		DayOfMonth:         10,
		DueDateOffset:      7,
		StartDate:          timeutil.Date(2025, time.January, 10),
		NextGenerationDate: timeutil.Today().AddDate(0, 1, 0),
		IsActive:           true,
		Frequency:          domain.FrequencyMonthly,
	}
}

func createRequest() serviceports.CreateTemplateRequest {
	return serviceports.CreateTemplateRequest{
		MerchantID:          "MERCH123",
		CustomerID:          "cust-1",
		InvoiceNumberPrefix: "ACME",
		Description:         "Monthly retainer",
		Amount:              decimal.RequireFromString("500.00"),
		DayOfMonth:          15,
		StartDate:           timeutil.Today().AddDate(0, 1, 0),
	}
}

func TestService_CreateTemplate_Success(t *testing.T) {
	svc, mockDB, mockTemplateRepo, mockCustomerRepo := newServiceWithMocks()

	ctx := context.Background()
	req := createRequest()

	mockCustomerRepo.On("GetByID", ctx, nil, "MERCH123", "cust-1").
		Return(&domain.Customer{ID: "cust-1", MerchantID: "MERCH123", Phone: "919876543210"}, nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Create", ctx, nil, mock.AnythingOfType("*domain.RecurringTemplate")).
		Return(nil)

	template, err := svc.CreateTemplate(ctx, req)

	require.NoError(t, err)
	assert.NotEmpty(t, template.ID)
	assert.True(t, template.IsActive)
	assert.Equal(t, domain.FrequencyMonthly, template.Frequency)
	assert.Equal(t, domain.DefaultDueDateOffset, template.DueDateOffset)
	assert.Equal(t, 15, template.NextGenerationDate.Day())
	assert.False(t, template.NextGenerationDate.Before(template.StartDate))
	mockCustomerRepo.AssertExpectations(t)
	mockTemplateRepo.AssertExpectations(t)
}

func TestService_CreateTemplate_NonPositiveAmount(t *testing.T) {
	svc, _, mockTemplateRepo, _ := newServiceWithMocks()

	req := createRequest()
	req.Amount = decimal.Zero

	_, err := svc.CreateTemplate(context.Background(), req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationAmountInvalid))
	mockTemplateRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CreateTemplate_StartDateInPast(t *testing.T) {
	svc, _, _, _ := newServiceWithMocks()

	req := createRequest()
	req.StartDate = timeutil.Today().AddDate(0, 0, -1)

	_, err := svc.CreateTemplate(context.Background(), req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationDateRange))
}

func TestService_CreateTemplate_EndDateBeforeStartDate(t *testing.T) {
	svc, _, _, _ := newServiceWithMocks()

	req := createRequest()
	endDate := req.StartDate.AddDate(0, 0, -5)
	req.EndDate = &endDate

	_, err := svc.CreateTemplate(context.Background(), req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationDateRange))
}

func TestService_CreateTemplate_InvalidDayOfMonth(t *testing.T) {
	svc, _, _, _ := newServiceWithMocks()

	req := createRequest()
	req.DayOfMonth = 32

	_, err := svc.CreateTemplate(context.Background(), req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationDayOfMonth))
}

func TestService_CreateTemplate_UnknownCustomer(t *testing.T) {
	svc, _, mockTemplateRepo, mockCustomerRepo := newServiceWithMocks()

	ctx := context.Background()
	req := createRequest()

	mockCustomerRepo.On("GetByID", ctx, nil, "MERCH123", "cust-1").
		Return(nil, domain.NewDomainError(domain.ErrorCodeCustomerNotFound, "customer not found or does not belong to merchant"))

	_, err := svc.CreateTemplate(ctx, req)

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeCustomerNotFound))
	mockTemplateRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_UpdateTemplate_AmountOnlyKeepsSchedule(t *testing.T) {
	svc, mockDB, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	originalNext := stored.NextGenerationDate
	newAmount := decimal.RequireFromString("750.00")

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Update", ctx, nil, mock.AnythingOfType("*domain.RecurringTemplate")).
		Return(nil)

	template, err := svc.UpdateTemplate(ctx, serviceports.UpdateTemplateRequest{
		MerchantID: "MERCH123",
		TemplateID: "tpl-1",
		Amount:     &newAmount,
	})

	require.NoError(t, err)
	assert.True(t, template.Amount.Equal(newAmount))
	assert.Equal(t, originalNext, template.NextGenerationDate)
}

func TestService_UpdateTemplate_DayOfMonthRecomputesSchedule(t *testing.T) {
	svc, mockDB, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	newDay := 5

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Update", ctx, nil, mock.AnythingOfType("*domain.RecurringTemplate")).
		Return(nil)

	template, err := svc.UpdateTemplate(ctx, serviceports.UpdateTemplateRequest{
		MerchantID: "MERCH123",
		TemplateID: "tpl-1",
		DayOfMonth: &newDay,
	})

	require.NoError(t, err)
	assert.Equal(t, 5, template.NextGenerationDate.Day())
	assert.False(t, template.NextGenerationDate.Before(timeutil.Today()))
}

func TestService_UpdateTemplate_InvalidDayOfMonth(t *testing.T) {
	svc, _, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	newDay := 40

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(storedTemplate(), nil)

	_, err := svc.UpdateTemplate(ctx, serviceports.UpdateTemplateRequest{
		MerchantID: "MERCH123",
		TemplateID: "tpl-1",
		DayOfMonth: &newDay,
	})

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationDayOfMonth))
	mockTemplateRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_UpdateTemplate_NotFound(t *testing.T) {
	svc, _, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "missing").
		Return(nil, domain.NewDomainError(domain.ErrorCodeTemplateNotFound, "recurring invoice template not found"))

	_, err := svc.UpdateTemplate(ctx, serviceports.UpdateTemplateRequest{
		MerchantID: "MERCH123",
		TemplateID: "missing",
	})

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTemplateNotFound))
}

func TestService_PauseTemplate(t *testing.T) {
	svc, mockDB, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	originalNext := stored.NextGenerationDate

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Update", ctx, nil, mock.AnythingOfType("*domain.RecurringTemplate")).
		Return(nil)

	template, err := svc.PauseTemplate(ctx, "MERCH123", "tpl-1")

	require.NoError(t, err)
	assert.False(t, template.IsActive)
	assert.Equal(t, originalNext, template.NextGenerationDate)
}

func TestService_PauseTemplate_AlreadyPaused(t *testing.T) {
	svc, _, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	stored.IsActive = false

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)

	template, err := svc.PauseTemplate(ctx, "MERCH123", "tpl-1")

	require.NoError(t, err)
	assert.False(t, template.IsActive)
	mockTemplateRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_ResumeTemplate_RecomputesStaleSchedule(t *testing.T) {
	svc, mockDB, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	stored.IsActive = false
	stored.NextGenerationDate = timeutil.Today().AddDate(0, -3, 0)

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Update", ctx, nil, mock.AnythingOfType("*domain.RecurringTemplate")).
		Return(nil)

	template, err := svc.ResumeTemplate(ctx, "MERCH123", "tpl-1")

	require.NoError(t, err)
	assert.True(t, template.IsActive)
	assert.False(t, template.NextGenerationDate.Before(timeutil.Today()))
	assert.Equal(t, 10, template.NextGenerationDate.Day())
}

func TestService_ResumeTemplate_FutureScheduleUntouched(t *testing.T) {
	svc, mockDB, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	stored.IsActive = false
	futureNext := stored.NextGenerationDate

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Update", ctx, nil, mock.AnythingOfType("*domain.RecurringTemplate")).
		Return(nil)

	template, err := svc.ResumeTemplate(ctx, "MERCH123", "tpl-1")

	// Pausing and resuming before the next cycle arrives must not move the
	// schedule; only a date already in the past is recomputed.
	require.NoError(t, err)
	assert.True(t, template.IsActive)
	assert.Equal(t, futureNext, template.NextGenerationDate)
}

func TestService_ResumeTemplate_PastEndDate(t *testing.T) {
	svc, _, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()
	stored := storedTemplate()
	stored.IsActive = false
	stored.NextGenerationDate = timeutil.Today().AddDate(0, -3, 0)
	endDate := timeutil.Today().AddDate(0, -2, 0)
	stored.EndDate = &endDate

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(stored, nil)

	_, err := svc.ResumeTemplate(ctx, "MERCH123", "tpl-1")

	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTemplateInactive))
	mockTemplateRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_CancelTemplate(t *testing.T) {
	svc, mockDB, mockTemplateRepo, _ := newServiceWithMocks()

	ctx := context.Background()

	mockTemplateRepo.On("GetByID", ctx, nil, "MERCH123", "tpl-1").
		Return(storedTemplate(), nil)
	mockDB.On("WithTransaction", ctx, mock.AnythingOfType("func(context.Context, pgx.Tx) error")).
		Return(nil)
	mockTemplateRepo.On("Deactivate", ctx, nil, "tpl-1").
		Return(nil)

	err := svc.CancelTemplate(ctx, "MERCH123", "tpl-1")

	require.NoError(t, err)
	mockTemplateRepo.AssertExpectations(t)
}
