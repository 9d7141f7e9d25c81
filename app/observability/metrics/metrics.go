package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RegisterRequestsTotal   metric.Int64Counter
	RegisterDurationSeconds metric.Float64Histogram
	LoginAttemptsTotal      metric.Int64Counter
	VerificationsTotal      metric.Int64Counter
	PasswordResetsTotal     metric.Int64Counter
	TokenRefreshesTotal     metric.Int64Counter
	ThrottleRejectionsTotal metric.Int64Counter
	EmailFailuresTotal      metric.Int64Counter
	AuthGateRejectionsTotal metric.Int64Counter
	DbQueryDurationSeconds  metric.Float64Histogram
	DbQueryErrorsTotal      metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

func counter(meter metric.Meter, name, description, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

func histogram(meter metric.Meter, name, description string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(description), metric.WithUnit("s"))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return h
}

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider, so call it after the provider is set.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("go-auth-service")
		appMetrics = &AppMetrics{
			RegisterRequestsTotal:   counter(meter, "register_requests_total", "Total number of register requests completed, by outcome", "{request}"),
			RegisterDurationSeconds: histogram(meter, "register_duration_seconds", "Duration of register requests in seconds"),
			LoginAttemptsTotal:      counter(meter, "login_attempts_total", "Login attempts, by outcome", "{attempt}"),
			VerificationsTotal:      counter(meter, "email_verifications_total", "Verification code consumptions, by outcome", "{attempt}"),
			PasswordResetsTotal:     counter(meter, "password_resets_total", "Password reset issues and consumptions, by stage and outcome", "{attempt}"),
			TokenRefreshesTotal:     counter(meter, "token_refreshes_total", "Refresh token exchanges, by outcome", "{attempt}"),
			ThrottleRejectionsTotal: counter(meter, "registration_throttle_rejections_total", "Registrations rejected by the throttle", "{request}"),
			EmailFailuresTotal:      counter(meter, "email_dispatch_failures_total", "Emails that could not be delivered", "{email}"),
			AuthGateRejectionsTotal: counter(meter, "auth_gate_rejections_total", "Requests rejected by the auth or admin gate, by reason", "{request}"),
			DbQueryDurationSeconds:  histogram(meter, "db_query_duration_seconds", "Duration of credential store calls in seconds"),
			DbQueryErrorsTotal:      counter(meter, "db_query_errors_total", "Total number of credential store errors", "{error}"),
		}
		log.Println("Application metrics instruments initialized.")
	})
}

// Get returns the AppMetrics instance, creating it from the global provider on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}
