package admin

import "context"

type ctxKey string

const (
	ctxKeyTenant    ctxKey = "admin_tenant"
	ctxKeySubject   ctxKey = "admin_subject"
	ctxKeyRequestID ctxKey = "admin_request_id"
)

// WithTenant stores a tenant identifier in the context, overriding the
// client's selected tenant for calls made with this context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, ctxKeyTenant, tenant)
}

// TenantFromContext extracts the tenant identifier from the context.
func TenantFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyTenant).(string)
	return v
}

// WithSubject stores the acting account identifier in the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// SubjectFromContext extracts the acting account identifier from the context.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySubject).(string)
	return v
}

// WithRequestID stores an explicit request correlation ID in the context.
// When absent, the request client generates one per outbound call.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request correlation ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}
