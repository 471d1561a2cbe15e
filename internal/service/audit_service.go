package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/models"
	"github.com/noah-isme/timesheet-api/pkg/jobs"
	"github.com/noah-isme/timesheet-api/pkg/middleware/requestid"
)

// Origin fallbacks for mutations that did not arrive over HTTP.
const (
	auditSystemIP  = "system"
	auditUserAgent = "timesheet-service"
)

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService persists the audit trail off the request path through a worker queue.
type AuditService struct {
	repo    auditLogger
	queue   *jobs.Queue[*models.AuditLog]
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService builds the service and its queue. Call Start before recording.
func NewAuditService(repo auditLogger, metrics *MetricsService, cfg jobs.QueueConfig) *AuditService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, metrics: metrics, logger: cfg.Logger}
	s.queue = jobs.NewQueue("audit", s.persist, cfg)
	s.queue.OnGiveUp(s.abandoned)
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes buffered records and waits for the workers to exit.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record queues log for persistence. When the queue refuses it, the log is written inline.
func (s *AuditService) Record(ctx context.Context, log *models.AuditLog) {
	if s == nil || log == nil {
		return
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	err := s.queue.Enqueue(jobs.Job[*models.AuditLog]{Type: log.Action, Payload: log})
	if err == nil {
		s.metrics.RecordAudit(AuditQueued)
		return
	}
	s.logger.Debug("audit queue unavailable, writing inline", zap.Error(err))
	if err := s.repo.CreateAuditLog(context.WithoutCancel(ctx), log); err != nil {
		s.metrics.RecordAudit(AuditFailed)
		s.logger.Warn("failed to persist audit log", zap.String("action", log.Action), zap.Error(err))
		return
	}
	s.metrics.RecordAudit(AuditInline)
}

func (s *AuditService) persist(ctx context.Context, job jobs.Job[*models.AuditLog]) error {
	return s.repo.CreateAuditLog(ctx, job.Payload)
}

func (s *AuditService) abandoned(job jobs.Job[*models.AuditLog], err error) {
	s.metrics.RecordAudit(AuditAbandoned)
	fields := []zap.Field{zap.String("action", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err)}
	if log := job.Payload; log != nil {
		fields = append(fields, zap.String("resource", log.Resource))
		if log.ResourceID != nil {
			fields = append(fields, zap.String("resource_id", *log.ResourceID))
		}
	}
	s.logger.Error("audit log lost", fields...)
}

// newAuditLog builds a record for actor, stamping the request origin when ctx carries one.
func newAuditLog(ctx context.Context, actor *models.JWTClaims, action, resource, resourceID string, oldValues, newValues interface{}) *models.AuditLog {
	log := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		OldValues: auditPayload(oldValues),
		NewValues: auditPayload(newValues),
		IPAddress: auditSystemIP,
		UserAgent: auditUserAgent,
	}
	if actor != nil && actor.UserID != "" {
		userID := actor.UserID
		log.UserID = &userID
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if origin, ok := requestid.FromContext(ctx); ok {
		if origin.IP != "" {
			log.IPAddress = origin.IP
		}
		if origin.UserAgent != "" {
			log.UserAgent = origin.UserAgent
		}
	}
	return log
}

// requestLogger tags l with the request ID carried by ctx.
func requestLogger(ctx context.Context, l *zap.Logger) *zap.Logger {
	if origin, ok := requestid.FromContext(ctx); ok && origin.RequestID != "" {
		return l.With(zap.String("request_id", origin.RequestID))
	}
	return l
}

func auditPayload(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
