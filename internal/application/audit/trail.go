// Package audit appends and queries the ledger's audit trail.
package audit

import (
	"context"
	"fmt"

	"github.com/stickroom/ledger/internal/domain/audit"
)

type clientIPKey struct{}

// WithClientIP stores the address a request came from so action logs can record it
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// ClientIP returns the address stored by WithClientIP
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// Append writes an action log through the repository of the caller's unit of work.
// A zero agentID records a system action.
func Append(ctx context.Context, logs audit.ActionLogRepository, agentID int64, action audit.ActionType, entityType string, entityID int64, details audit.Details) error {
	entry := audit.NewActionLog(agentID, action, entityType, entityID, details).WithIP(ClientIP(ctx))
	if err := logs.Create(ctx, entry); err != nil {
		return fmt.Errorf("append %s action log: %w", action, err)
	}
	return nil
}
