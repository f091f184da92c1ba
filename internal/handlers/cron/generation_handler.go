package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bsm/redislock"
	"go.uber.org/zap"

	"github.com/merchantpay/billing-service/internal/services/ports"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// GenerationLockKey guards against overlapping generation passes across
// replicas. The lock is best-effort; correctness comes from the per-template
// schedule compare-and-set, the lock only avoids wasted work.
const GenerationLockKey = "lock:invoice-generation"

// generationLockTTL bounds how long a crashed pass can hold the lock
const generationLockTTL = 5 * time.Minute

// GenerationHandler handles cron job endpoints for recurring invoice generation
type GenerationHandler struct {
	generationService ports.GenerationService
	locker            *redislock.Client
	logger            *zap.Logger
	cronSecret        string
}

// NewGenerationHandler creates a new generation cron handler.
// locker may be nil when Redis is not configured; passes then run unguarded.
func NewGenerationHandler(
	generationService ports.GenerationService,
	locker *redislock.Client,
	logger *zap.Logger,
	cronSecret string,
) *GenerationHandler {
	return &GenerationHandler{
		generationService: generationService,
		locker:            locker,
		logger:            logger,
		cronSecret:        cronSecret,
	}
}

// GenerateInvoicesRequest represents the request body for a manual trigger
type GenerateInvoicesRequest struct {
	AsOfDate  *string `json:"as_of_date"` // Optional: ISO date string, defaults to today
	BatchSize *int    `json:"batch_size"` // Optional: defaults to 100
}

// GenerateInvoicesResponse represents the response from a generation pass
type GenerateInvoicesResponse struct {
	Success      bool     `json:"success"`
	Processed    int      `json:"processed"`
	Generated    int      `json:"generated"`
	Deactivated  int      `json:"deactivated"`
	FailureCount int      `json:"failure_count"`
	InvoiceIDs   []string `json:"invoice_ids,omitempty"`
	Errors       []string `json:"errors,omitempty"`
	ProcessedAt  string   `json:"processed_at"`
}

// GenerateInvoices handles the POST /cron/generate-invoices endpoint.
// Called by the external scheduler once per day, and available for manual
// re-runs; re-triggering after a successful pass is a no-op.
func (h *GenerationHandler) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Invoice generation cron job triggered",
		zap.String("method", r.Method),
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("user_agent", r.UserAgent()),
	)

	if r.Method != http.MethodPost {
		h.respondError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	if !h.authenticateRequest(r) {
		h.logger.Warn("Unauthorized cron request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		h.respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Parse request body (optional parameters)
	var req GenerateInvoicesRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.logger.Warn("Failed to parse request body",
				zap.Error(err),
			)
			// Continue with defaults if parsing fails
		}
	}

	asOfDate := timeutil.Today()
	if req.AsOfDate != nil {
		parsed, err := timeutil.ParseDate("2006-01-02", *req.AsOfDate)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid as_of_date format: %v", err))
			return
		}
		asOfDate = parsed
	}

	batchSize := 100
	if req.BatchSize != nil {
		if *req.BatchSize < 1 || *req.BatchSize > 1000 {
			h.respondError(w, http.StatusBadRequest, "batch_size must be between 1 and 1000")
			return
		}
		batchSize = *req.BatchSize
	}

	ctx := context.Background()

	if h.locker != nil {
		lock, err := h.locker.Obtain(ctx, GenerationLockKey, generationLockTTL, nil)
		if err == redislock.ErrNotObtained {
			h.logger.Warn("Generation pass already running on another replica")
			h.respondError(w, http.StatusConflict, "a generation pass is already running")
			return
		}
		if err != nil {
			// Redis being down must not stop billing
			h.logger.Warn("Failed to obtain generation lock, continuing without it",
				zap.Error(err),
			)
		} else {
			defer func() {
				if err := lock.Release(ctx); err != nil {
					h.logger.Warn("Failed to release generation lock", zap.Error(err))
				}
			}()
		}
	}

	result, err := h.generationService.ProcessDueTemplates(ctx, asOfDate, batchSize)
	if err != nil {
		h.logger.Error("Generation pass failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "generation pass failed")
		return
	}

	resp := GenerateInvoicesResponse{
		Success:      result.FailedCount == 0,
		Processed:    result.ProcessedCount,
		Generated:    result.GeneratedCount,
		Deactivated:  result.DeactivatedCount,
		FailureCount: result.FailedCount,
		InvoiceIDs:   result.GeneratedInvoiceIDs,
		ProcessedAt:  time.Now().Format(time.RFC3339),
	}

	if len(result.Errors) > 0 {
		resp.Errors = make([]string, len(result.Errors))
		for i, genErr := range result.Errors {
			resp.Errors[i] = fmt.Sprintf("template %s: %s", genErr.TemplateID, genErr.Error)
		}
	}

	h.logger.Info("Generation pass completed",
		zap.Int("processed", result.ProcessedCount),
		zap.Int("generated", result.GeneratedCount),
		zap.Int("deactivated", result.DeactivatedCount),
		zap.Int("failed", result.FailedCount),
	)

	w.Header().Set("Content-Type", "application/json")
	if resp.Success {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusPartialContent) // 206 indicates partial success
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// authenticateRequest verifies the cron request is authorized
func (h *GenerationHandler) authenticateRequest(r *http.Request) bool {
	// Check X-Cron-Secret header
	cronSecret := r.Header.Get("X-Cron-Secret")
	if cronSecret != "" && cronSecret == h.cronSecret {
		return true
	}

	// Check Authorization header (Bearer token)
	authHeader := r.Header.Get("Authorization")
	if authHeader == "Bearer "+h.cronSecret {
		return true
	}

	return false
}

// respondError sends an error response
func (h *GenerationHandler) respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := map[string]interface{}{
		"success": false,
		"error":   message,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// HealthCheck handles GET /cron/health for monitoring
func (h *GenerationHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	resp := map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	}

	json.NewEncoder(w).Encode(resp)
}
