package backend

import (
	"errors"
	"fmt"
)

// FailureKind is the closed taxonomy of backend call failures.
type FailureKind string

const (
	// FailureSecurityBlocked means the provider's policy layer rejected the
	// call; ThreatLevel and ThreatScore carry its metadata.
	FailureSecurityBlocked FailureKind = "security_blocked"
	// FailureTransient means a timeout or network-level failure worth retrying.
	FailureTransient FailureKind = "transient"
	// FailureFatal means an unrecoverable provider error, e.g. a malformed request.
	FailureFatal FailureKind = "fatal"
)

// Failure is a classified backend failure. Adapters construct it at the
// provider boundary so nothing downstream pattern-matches error text.
type Failure struct {
	Kind        FailureKind
	Message     string
	ThreatLevel string
	ThreatScore float64
}

func (f *Failure) Error() string {
	if f.Kind == FailureSecurityBlocked {
		return fmt.Sprintf("backend %s: %s (threat_level=%s score=%.2f)", f.Kind, f.Message, f.ThreatLevel, f.ThreatScore)
	}
	return fmt.Sprintf("backend %s: %s", f.Kind, f.Message)
}

// AsFailure unwraps err into a *Failure if one is present.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// TransientFailure builds a retryable failure.
func TransientFailure(format string, args ...any) *Failure {
	return &Failure{Kind: FailureTransient, Message: fmt.Sprintf(format, args...)}
}

// FatalFailure builds an unrecoverable failure.
func FatalFailure(format string, args ...any) *Failure {
	return &Failure{Kind: FailureFatal, Message: fmt.Sprintf(format, args...)}
}

// SecurityFailure builds a policy-rejection failure with threat metadata.
func SecurityFailure(message, threatLevel string, threatScore float64) *Failure {
	if threatLevel == "" {
		threatLevel = "medium"
	}
	return &Failure{
		Kind:        FailureSecurityBlocked,
		Message:     message,
		ThreatLevel: threatLevel,
		ThreatScore: threatScore,
	}
}
