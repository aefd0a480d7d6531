package apiclient

import "context"

type contextKey string

const (
	attemptKey   contextKey = "attempt"
	requestIDKey contextKey = "request_id"
)

// withAttempt records how many times the logical request has already been
// retried after a refresh. The refresh interceptor only acts on attempt 0.
func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

func attemptFrom(ctx context.Context) int {
	attempt, _ := ctx.Value(attemptKey).(int)
	return attempt
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the X-Request-ID of the logical request carried by ctx.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
