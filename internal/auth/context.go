package auth

import "context"

// Context keys for authentication data
type contextKey string

const (
	MerchantIDKey contextKey = "merchant_id"
	TokenJTIKey   contextKey = "token_jti"
	RequestIDKey  contextKey = "request_id"
)

// WithMerchantID returns a context carrying the authenticated merchant id
func WithMerchantID(ctx context.Context, merchantID string) context.Context {
	return context.WithValue(ctx, MerchantIDKey, merchantID)
}

// MerchantIDFromContext extracts the authenticated merchant id.
// Returns false when the request was not authenticated.
func MerchantIDFromContext(ctx context.Context) (string, bool) {
	merchantID, ok := ctx.Value(MerchantIDKey).(string)
	return merchantID, ok && merchantID != ""
}

// WithRequestID returns a context carrying the request correlation id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestIDFromContext extracts the request correlation id, if any
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}
