// Package metrics holds the prometheus collectors of the bookshelf server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Mechanism label values.
const (
	MechanismToken   = "token"
	MechanismSession = "session"
	MechanismGoogle  = "google"
	MechanismSignup  = "signup"
)

var (
	// AuthAttempts counts authentication attempts.
	// Labels:
	//   - mechanism: "token", "session", "google", "signup"
	//   - outcome: "success", "failure", "error", "rejected"
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"mechanism", "outcome"},
	)

	// BookOperations counts book collection operations.
	BookOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookshelf_book_operations_total",
			Help: "Total number of book collection operations",
		},
		[]string{"operation", "outcome"},
	)

	// PasswordHashDuration measures bcrypt hash and compare latency, including
	// time spent waiting for a worker slot.
	PasswordHashDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bookshelf_password_hash_seconds",
			Help:    "Duration of password hash operations in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)
)

// RecordAuth increments the auth attempt counter.
func RecordAuth(mechanism, outcome string) {
	AuthAttempts.WithLabelValues(mechanism, outcome).Inc()
}

// RecordBookOperation increments the book operation counter.
func RecordBookOperation(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	BookOperations.WithLabelValues(operation, outcome).Inc()
}
