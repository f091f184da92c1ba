package recurring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/auth"
	"github.com/merchantpay/billing-service/internal/domain"
	domainports "github.com/merchantpay/billing-service/internal/domain/ports"
	"github.com/merchantpay/billing-service/internal/services/ports"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

const (
	dateLayout = "2006-01-02"
	timeFormat = time.RFC3339
)

// timeZero is used to clear an optional end date on update
var timeZero time.Time

// TemplateHandler exposes the recurring invoice template lifecycle over HTTP.
// Every route requires an authenticated merchant on the request context.
type TemplateHandler struct {
	templateService ports.TemplateService
	invoiceRepo     domainports.InvoiceRepository
	validate        *validator.Validate
	logger          *zap.Logger
}

// NewTemplateHandler creates a new template HTTP handler
func NewTemplateHandler(
	templateService ports.TemplateService,
	invoiceRepo domainports.InvoiceRepository,
	logger *zap.Logger,
) *TemplateHandler {
	return &TemplateHandler{
		templateService: templateService,
		invoiceRepo:     invoiceRepo,
		validate:        validator.New(),
		logger:          logger,
	}
}

// RegisterRoutes attaches the template routes to mux
func (h *TemplateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/recurring-invoices", h.Create)
	mux.HandleFunc("GET /api/v1/recurring-invoices", h.List)
	mux.HandleFunc("GET /api/v1/recurring-invoices/{id}", h.Get)
	mux.HandleFunc("PATCH /api/v1/recurring-invoices/{id}", h.Update)
	mux.HandleFunc("POST /api/v1/recurring-invoices/{id}/pause", h.Pause)
	mux.HandleFunc("POST /api/v1/recurring-invoices/{id}/resume", h.Resume)
	mux.HandleFunc("DELETE /api/v1/recurring-invoices/{id}", h.Cancel)
	mux.HandleFunc("GET /api/v1/recurring-invoices/{id}/invoices", h.ListInvoices)
}

type createTemplateRequest struct {
	CustomerID          string  `json:"customer_id" validate:"required"`
	InvoiceNumberPrefix string  `json:"invoice_number_prefix" validate:"omitempty,max=20"`
	Description         string  `json:"description" validate:"omitempty,max=500"`
	Amount              string  `json:"amount" validate:"required"`
	DayOfMonth          int     `json:"day_of_month" validate:"required,min=1,max=31"`
	DueDateOffset       *int    `json:"due_date_offset" validate:"omitempty,min=0,max=365"`
	StartDate           string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	PauseReminder       bool    `json:"pause_reminder"`
}

type updateTemplateRequest struct {
	InvoiceNumberPrefix *string `json:"invoice_number_prefix" validate:"omitempty,max=20"`
	Description         *string `json:"description" validate:"omitempty,max=500"`
	Amount              *string `json:"amount"`
	DayOfMonth          *int    `json:"day_of_month" validate:"omitempty,min=1,max=31"`
	DueDateOffset       *int    `json:"due_date_offset" validate:"omitempty,min=0,max=365"`
	StartDate           *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate             *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	PauseReminder       *bool   `json:"pause_reminder"`
}

type templateResponse struct {
	ID                  string  `json:"id"`
	CustomerID          string  `json:"customer_id"`
	InvoiceNumberPrefix string  `json:"invoice_number_prefix,omitempty"`
	Description         string  `json:"description,omitempty"`
	Amount              string  `json:"amount"`
	DayOfMonth          int     `json:"day_of_month"`
	DueDateOffset       int     `json:"due_date_offset"`
	StartDate           string  `json:"start_date"`
	EndDate             *string `json:"end_date,omitempty"`
	NextGenerationDate  string  `json:"next_generation_date"`
	IsActive            bool    `json:"is_active"`
	Frequency           string  `json:"frequency"`
	PauseReminder       bool    `json:"pause_reminder"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

type invoiceResponse struct {
	ID                  string  `json:"id"`
	CustomerID          string  `json:"customer_id"`
	RecurringTemplateID *string `json:"recurring_template_id,omitempty"`
	InvoiceNumber       string  `json:"invoice_number,omitempty"`
	Description         string  `json:"description,omitempty"`
	Amount              string  `json:"amount"`
	DueDate             string  `json:"due_date"`
	Status              string  `json:"status"`
	CreatedAt           string  `json:"created_at"`
}

// Create handles POST /api/v1/recurring-invoices
func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}

	var req createTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "amount must be a decimal string")
		return
	}

	startDate, err := timeutil.ParseDate(dateLayout, req.StartDate)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "start_date must use YYYY-MM-DD")
		return
	}

	serviceReq := ports.CreateTemplateRequest{
		MerchantID:          merchantID,
		CustomerID:          req.CustomerID,
		InvoiceNumberPrefix: req.InvoiceNumberPrefix,
		Description:         req.Description,
		Amount:              amount,
		DayOfMonth:          req.DayOfMonth,
		DueDateOffset:       req.DueDateOffset,
		StartDate:           startDate,
		PauseReminder:       req.PauseReminder,
	}
	if req.EndDate != nil {
		endDate, err := timeutil.ParseDate(dateLayout, *req.EndDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "end_date must use YYYY-MM-DD")
			return
		}
		serviceReq.EndDate = &endDate
	}

	template, err := h.templateService.CreateTemplate(r.Context(), serviceReq)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, toTemplateResponse(template))
}

// Get handles GET /api/v1/recurring-invoices/{id}
func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}

	template, err := h.templateService.GetTemplate(r.Context(), merchantID, r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toTemplateResponse(template))
}

// List handles GET /api/v1/recurring-invoices
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	templates, err := h.templateService.ListTemplates(r.Context(), merchantID, filter)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	items := make([]templateResponse, len(templates))
	for i, template := range templates {
		items[i] = toTemplateResponse(template)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// Update handles PATCH /api/v1/recurring-invoices/{id}
func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}

	var req updateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	serviceReq := ports.UpdateTemplateRequest{
		MerchantID:          merchantID,
		TemplateID:          r.PathValue("id"),
		InvoiceNumberPrefix: req.InvoiceNumberPrefix,
		Description:         req.Description,
		DayOfMonth:          req.DayOfMonth,
		DueDateOffset:       req.DueDateOffset,
		PauseReminder:       req.PauseReminder,
	}

	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "amount must be a decimal string")
			return
		}
		serviceReq.Amount = &amount
	}
	if req.StartDate != nil {
		startDate, err := timeutil.ParseDate(dateLayout, *req.StartDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "start_date must use YYYY-MM-DD")
			return
		}
		serviceReq.StartDate = &startDate
	}
	if req.EndDate != nil {
		if *req.EndDate == "" {
			// Explicit empty string clears the end date
			serviceReq.EndDate = &timeZero
		} else {
			endDate, err := timeutil.ParseDate(dateLayout, *req.EndDate)
			if err != nil {
				h.respondError(w, http.StatusBadRequest, "end_date must use YYYY-MM-DD")
				return
			}
			serviceReq.EndDate = &endDate
		}
	}

	template, err := h.templateService.UpdateTemplate(r.Context(), serviceReq)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toTemplateResponse(template))
}

// Pause handles POST /api/v1/recurring-invoices/{id}/pause
func (h *TemplateHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.templateService.PauseTemplate)
}

// Resume handles POST /api/v1/recurring-invoices/{id}/resume
func (h *TemplateHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.templateService.ResumeTemplate)
}

// Cancel handles DELETE /api/v1/recurring-invoices/{id}
func (h *TemplateHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}

	if err := h.templateService.CancelTemplate(r.Context(), merchantID, r.PathValue("id")); err != nil {
		h.respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListInvoices handles GET /api/v1/recurring-invoices/{id}/invoices
func (h *TemplateHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}
	templateID := r.PathValue("id")

	// Confirm the template exists under this merchant before listing
	if _, err := h.templateService.GetTemplate(r.Context(), merchantID, templateID); err != nil {
		h.respondDomainError(w, err)
		return
	}

	offset, limit, err := parsePagination(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoices, err := h.invoiceRepo.ListByTemplate(r.Context(), nil, merchantID, templateID, offset, limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	items := make([]invoiceResponse, len(invoices))
	for i, invoice := range invoices {
		items[i] = toInvoiceResponse(invoice)
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

func (h *TemplateHandler) lifecycleAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error),
) {
	merchantID, ok := auth.MerchantIDFromContext(r.Context())
	if !ok {
		h.respondDomainError(w, domain.NewDomainError(domain.ErrorCodeAuthMissing, "authentication required"))
		return
	}

	template, err := action(r.Context(), merchantID, r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, toTemplateResponse(template))
}

func parseListFilter(r *http.Request) (domainports.TemplateListFilter, error) {
	var filter domainports.TemplateListFilter
	q := r.URL.Query()

	if v := q.Get("is_active"); v != "" {
		isActive, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("is_active must be true or false")
		}
		filter.IsActive = &isActive
	}
	if v := q.Get("customer_id"); v != "" {
		filter.CustomerID = &v
	}
	if v := q.Get("start_date_from"); v != "" {
		from, err := timeutil.ParseDate(dateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("start_date_from must use YYYY-MM-DD")
		}
		filter.StartDateFrom = &from
	}
	if v := q.Get("start_date_to"); v != "" {
		to, err := timeutil.ParseDate(dateLayout, v)
		if err != nil {
			return filter, fmt.Errorf("start_date_to must use YYYY-MM-DD")
		}
		filter.StartDateTo = &to
	}

	var err error
	filter.Offset, filter.Limit, err = parsePagination(r)
	return filter, err
}

func parsePagination(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	limit = 50

	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 200 {
			return 0, 0, fmt.Errorf("limit must be between 1 and 200")
		}
	}
	return offset, limit, nil
}

func toTemplateResponse(t *domain.RecurringTemplate) templateResponse {
	resp := templateResponse{
		ID:                  t.ID,
		CustomerID:          t.CustomerID,
		InvoiceNumberPrefix: t.InvoiceNumberPrefix,
		Description:         t.Description,
		Amount:              t.Amount.StringFixed(2),
		DayOfMonth:          t.DayOfMonth,
		DueDateOffset:       t.DueDateOffset,
		StartDate:           t.StartDate.Format(dateLayout),
		NextGenerationDate:  t.NextGenerationDate.Format(dateLayout),
		IsActive:            t.IsActive,
		Frequency:           string(t.Frequency),
		PauseReminder:       t.PauseReminder,
		CreatedAt:           t.CreatedAt.Format(timeFormat),
		UpdatedAt:           t.UpdatedAt.Format(timeFormat),
	}
	if t.EndDate != nil {
		endDate := t.EndDate.Format(dateLayout)
		resp.EndDate = &endDate
	}
	return resp
}

func toInvoiceResponse(inv *domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:                  inv.ID,
		CustomerID:          inv.CustomerID,
		RecurringTemplateID: inv.RecurringTemplateID,
		InvoiceNumber:       inv.InvoiceNumber,
		Description:         inv.Description,
		Amount:              inv.Amount.StringFixed(2),
		DueDate:             inv.DueDate.Format(dateLayout),
		Status:              string(inv.Status),
		CreatedAt:           inv.CreatedAt.Format(timeFormat),
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Sprintf("validation failed on field %s (%s)", verrs[0].Field(), verrs[0].Tag())
	}
	return "validation failed"
}

func (h *TemplateHandler) respondJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *TemplateHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	h.respondJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondDomainError maps domain error codes onto HTTP status codes
func (h *TemplateHandler) respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case domain.IsAuthError(err):
		status = http.StatusUnauthorized
		message = "authentication required"
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
		message = err.Error()
	case domain.IsValidationError(err), domain.IsDomainError(err, domain.ErrorCodeTemplateInactive):
		status = http.StatusBadRequest
		message = err.Error()
	case domain.IsConflictError(err):
		status = http.StatusConflict
		message = err.Error()
	default:
		h.logger.Error("Unhandled service error", zap.Error(err))
	}

	h.respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
		"code":    string(domain.GetErrorCode(err)),
	})
}
