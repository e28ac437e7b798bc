package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/lecturer-contract-api/internal/models"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditEntry struct {
	actor      *models.JWTClaims
	action     string
	resource   string
	resourceID string
	oldValues  map[string]interface{}
	newValues  map[string]interface{}
}

// emitAudit writes the entry and only logs on failure; audit problems never fail the mutation.
func emitAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, entry auditEntry) {
	if audit == nil {
		return
	}
	resourceID := entry.resourceID
	log := &models.AuditLog{
		Action:     entry.action,
		Resource:   entry.resource,
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  entry.resource + "-service",
	}
	if entry.actor != nil {
		userID := entry.actor.UserID
		log.UserID = &userID
	}
	if entry.oldValues != nil {
		log.OldValues, _ = json.Marshal(entry.oldValues)
	}
	if entry.newValues != nil {
		log.NewValues, _ = json.Marshal(entry.newValues)
	}
	if err := audit.CreateAuditLog(ctx, log); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.action), zap.String("resource", entry.resource), zap.Error(err))
	}
}
