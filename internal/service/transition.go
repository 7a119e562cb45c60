package service

import (
	"fmt"
	"time"

	"github.com/samims/notify/internal/channel"
	appErr "github.com/samims/notify/internal/errors"
	"github.com/samims/notify/internal/model"
)

// OutcomeKind classifies the result of one delivery attempt
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeFailure
	OutcomeUnsupported
)

// Outcome is what an attempt produced, independent of which path ran it
type Outcome struct {
	Kind       OutcomeKind
	ExternalID string
	Error      string
}

// OutcomeFromResult converts an adapter result
func OutcomeFromResult(res channel.SendResult) Outcome {
	if res.OK {
		return Outcome{Kind: OutcomeSuccess, ExternalID: res.ExternalID}
	}
	return Outcome{Kind: OutcomeFailure, Error: res.Error}
}

// Err classifies a failed outcome under the delivery error taxonomy; it is nil on success
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeSuccess:
		return nil
	case OutcomeUnsupported:
		return appErr.ErrChannelUnsupported
	default:
		return fmt.Errorf("%w: %s", appErr.ErrDeliveryFailure, o.Error)
	}
}

// UnsupportedOutcome is the result when no adapter is registered for ch
func UnsupportedOutcome(ch model.Channel) Outcome {
	return Outcome{
		Kind:  OutcomeUnsupported,
		Error: fmt.Sprintf("%s: %s", appErr.ErrChannelUnsupported, ch),
	}
}

// Policy decides what a failed attempt does to a record
type Policy struct {
	Name string
	// Retry sends failures back to PENDING until MaxRetries is reached
	Retry      bool
	MaxRetries int
}

// QueuePolicy retries up to maxRetries attempts before failing the record
func QueuePolicy(maxRetries int) Policy {
	return Policy{Name: PathQueue, Retry: true, MaxRetries: maxRetries}
}

// DirectPolicy fails the record on its first failed attempt
func DirectPolicy() Policy {
	return Policy{Name: PathDirect}
}

// Apply computes the record that results from outcome under policy.
// Terminal records are rejected with ErrTerminalState and returned unchanged.
func Apply(rec model.Notification, o Outcome, p Policy, now time.Time) (model.Notification, error) {
	if rec.Status.IsTerminal() {
		return rec, fmt.Errorf("%w: %s is %s", appErr.ErrTerminalState, rec.ID, rec.Status)
	}

	next := rec
	switch o.Kind {
	case OutcomeSuccess:
		sentAt := now
		next.Status = model.StatusSent
		next.SentAt = &sentAt
		next.ExternalID = o.ExternalID
		next.ErrorMessage = ""
	case OutcomeUnsupported:
		next.Status = model.StatusFailed
		next.ErrorMessage = o.Error
	default:
		next.ErrorMessage = o.Error
		if !p.Retry {
			next.Status = model.StatusFailed
			break
		}
		next.RetryCount++
		if next.RetryCount >= p.MaxRetries {
			next.Status = model.StatusFailed
		} else {
			next.Status = model.StatusPending
		}
	}
	next.UpdatedAt = now
	return next, nil
}
