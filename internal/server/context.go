package server

import "context"

type contextKey string

const contextKeyRequestID contextKey = "requestID"

// RequestID returns the id assigned to the request by the middleware chain.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}
