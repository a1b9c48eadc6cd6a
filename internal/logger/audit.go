package logger

import "go.uber.org/zap"

// Security event types recorded by the chat pipeline.
const (
	EventPromptInjection = "PROMPT_INJECTION"
	EventUnsafeContent   = "UNSAFE_CONTENT"
	EventAPIError        = "API_ERROR"
)

// SecurityEvent records a blocked or failed request for audit.
// detail carries the original unsanitized question (or the error text) so
// the audit trail shows exactly what was attempted.
func SecurityEvent(l *zap.Logger, clientIP, eventType, detail string) {
	l.Warn("security_event",
		zap.String("event_type", eventType),
		zap.String("ip", clientIP),
		zap.String("detail", detail),
	)
}

// RateLimitEvent records an admission denial.
func RateLimitEvent(l *zap.Logger, clientIP, reason string) {
	l.Info("rate_limit",
		zap.String("ip", clientIP),
		zap.String("reason", reason),
	)
}

// APIUsage records a successfully answered question. tokensEstimate is the
// whitespace word count of the answer, not a billing figure.
func APIUsage(l *zap.Logger, clientIP, question string, tokensEstimate int) {
	l.Info("api_usage",
		zap.String("ip", clientIP),
		zap.Int("tokens_estimate", tokensEstimate),
		zap.String("question", truncate(question, 30)),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
