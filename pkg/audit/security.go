// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/assembly-factory/pkg/session"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventUnsafeConfigValue is logged when libinjection flags a configuration value.
	EventUnsafeConfigValue SecurityEventType = "unsafe_config_value"
	// EventConfigValidation is logged when a configuration value is rejected by its schema.
	EventConfigValidation SecurityEventType = "config_validation_failure"
	// EventLifecycleAction is logged for deploy, rollback and delete of an assembly.
	EventLifecycleAction SecurityEventType = "assembly_lifecycle_action"
)

// maxLoggedValue bounds how much of a rejected value ends up in the log.
const maxLoggedValue = 256

type contextKey string

const clientIPKey contextKey = "client_ip"

// WithClientIP stores the caller address for later audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the caller address, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	ActorID   string            `json:"actor_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// UnsafeValueDetails describes a configuration value flagged by libinjection.
type UnsafeValueDetails struct {
	PartCode    string    `json:"part_code"`
	InstanceID  uuid.UUID `json:"instance_id"`
	FieldName   string    `json:"field_name"`
	FieldValue  string    `json:"field_value"`
	Detector    string    `json:"detector"`              // sqli or xss
	Fingerprint string    `json:"fingerprint,omitempty"` // libinjection fingerprint for pattern analysis
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger namespace.
// The logger is named "security_audit" for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogUnsafeValue records a configuration value rejected as an injection attempt.
// This is logged at ERROR level with "critical" severity for immediate alerting.
func (a *SecurityAuditor) LogUnsafeValue(ctx context.Context, details UnsafeValueDetails) {
	if len(details.FieldValue) > maxLoggedValue {
		details.FieldValue = details.FieldValue[:maxLoggedValue]
	}
	event := a.newEvent(ctx, EventUnsafeConfigValue, details, "critical")

	a.logger.Error("Unsafe configuration value rejected",
		zap.String("event_json", a.encode(event)),
		zap.String("part_code", details.PartCode),
		zap.String("instance_id", details.InstanceID.String()),
		zap.String("field_name", details.FieldName),
		zap.String("detector", details.Detector),
		zap.String("fingerprint", details.Fingerprint),
		zap.String("client_ip", event.ClientIP),
		zap.String("actor_id", event.ActorID),
		zap.String("severity", event.Severity),
	)
}

// LogConfigValidation records a configuration value rejected by its schema.
// This is logged at WARN level as these are typically user errors, not attacks.
func (a *SecurityAuditor) LogConfigValidation(ctx context.Context, partCode string, instanceID uuid.UUID, errorMessage string) {
	event := a.newEvent(ctx, EventConfigValidation, map[string]string{
		"part_code":   partCode,
		"instance_id": instanceID.String(),
		"error":       errorMessage,
	}, "warning")

	a.logger.Warn("Configuration validation failed",
		zap.String("event_json", a.encode(event)),
		zap.String("part_code", partCode),
		zap.String("error", errorMessage),
		zap.String("actor_id", event.ActorID),
		zap.String("severity", event.Severity),
	)
}

// LogLifecycleAction records a deploy, rollback or delete of an assembly.
func (a *SecurityAuditor) LogLifecycleAction(ctx context.Context, assemblyID uuid.UUID, action string) {
	event := a.newEvent(ctx, EventLifecycleAction, map[string]string{
		"assembly_id": assemblyID.String(),
		"action":      action,
	}, "info")

	a.logger.Info("Assembly lifecycle action",
		zap.String("event_json", a.encode(event)),
		zap.String("assembly_id", assemblyID.String()),
		zap.String("action", action),
		zap.String("client_ip", event.ClientIP),
		zap.String("actor_id", event.ActorID),
		zap.String("severity", event.Severity),
	)
}

func (a *SecurityAuditor) newEvent(ctx context.Context, eventType SecurityEventType, details any, severity string) SecurityEvent {
	return SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		ActorID:   session.ActorFromContext(ctx),
		ClientIP:  ClientIPFromContext(ctx),
		Details:   details,
		Severity:  severity,
	}
}

func (a *SecurityAuditor) encode(event SecurityEvent) string {
	// Marshaling known types does not fail.
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
