package main

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/pkg/logger"
)

// syncAudit persists each audit event before returning.
type syncAudit struct {
	ctx  context.Context
	repo ports.AuditRepository
}

func (a syncAudit) Record(ev domain.AuditEvent) {
	if err := a.repo.InsertAuditEvent(a.ctx, ev); err != nil {
		log := logger.Component("audit")
		log.Warn().Err(err).Str("action", string(ev.Action)).Msg("failed to persist audit event")
	}
}
