package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
	"github.com/kirillkom/yfetch-digest/internal/infrastructure/resilience"
)

// Connection states a summary job publish can outlive once the client
// reconnects.
var transientPublishErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionDraining,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
	nats.ErrSlowConsumer,
}

// Failures tied to the job itself. Republishing the same payload cannot help
// and the broker is healthy, so the breaker ignores them.
var rejectedJobErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case matchesAny(err, rejectedJobErrors):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), matchesAny(err, transientPublishErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

// publishFailure maps a failed publish of job to a domain error kind: the
// caller may resubmit on ErrTemporary, while a rejected job is ErrValidation.
func publishFailure(job domain.SummaryJob, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) || domain.IsKind(err, domain.ErrValidation) {
		return err
	}
	op := "publish summary job for post " + job.PostID
	if matchesAny(err, rejectedJobErrors) {
		return domain.WrapError(domain.ErrValidation, op, err)
	}
	if class := classifyPublishError(err); class.Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return err
}
