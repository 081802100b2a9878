package consistency

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"

	"go.uber.org/zap"
)

// DefaultEpsilon absorbs floating point drift when summing quantities.
const DefaultEpsilon = 1e-6

var (
	// ErrMissingTargetID is returned when an edit or delete does not name the event it applies to.
	ErrMissingTargetID = errors.New("target event id is required for edit and delete")
	// ErrTargetNotFound is returned in strict mode when the target event is not in the history.
	ErrTargetNotFound = errors.New("target event not found")
	// ErrNegativeQuantity is returned when an event carries a quantity below zero.
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	// ErrInvalidQuantity is returned for a NaN or infinite quantity, which would
	// poison every later balance.
	ErrInvalidQuantity = errors.New("quantity must be a finite number")
)

// Options tunes a Validator.
type Options struct {
	// Epsilon is the tolerance below zero accepted before a balance counts as negative.
	// Zero selects DefaultEpsilon.
	Epsilon float64
	// TolerateMissingTarget makes an edit or delete of an unknown event id behave
	// like a removal that matched nothing, instead of failing with ErrTargetNotFound.
	TolerateMissingTarget bool
}

// Validator checks that a proposed mutation keeps an asset's holding
// non-negative at every point of its history.
type Validator struct {
	logger                *zap.Logger
	epsilon               float64
	tolerateMissingTarget bool
}

func NewValidator(logger *zap.Logger, opts Options) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	eps := opts.Epsilon
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Validator{
		logger:                logger.Named("consistency"),
		epsilon:               eps,
		tolerateMissingTarget: opts.TolerateMissingTarget,
	}
}

// Validate applies action to a copy of existing and replays the result.
//
// A non-nil Violation means the mutation must be rejected; it is an ordinary
// outcome, not an error. The error is reserved for malformed requests: a
// missing target id, an unknown target in strict mode, an invalid kind or a
// negative quantity. existing is never modified.
func (v *Validator) Validate(existing []Event, action Action, proposed Event, targetID string) (*Violation, error) {
	timeline, err := v.apply(existing, action, proposed, targetID)
	if err != nil {
		v.logger.Warn("Rejected malformed validation request",
			zap.Stringer("action", action),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
		return nil, err
	}
	for _, ev := range timeline {
		if !ev.Kind.Valid() {
			return nil, fmt.Errorf("event %q: %w", ev.ID, ErrUnknownKind)
		}
		if math.IsNaN(ev.Quantity) || math.IsInf(ev.Quantity, 0) {
			return nil, fmt.Errorf("event %q: %w", ev.ID, ErrInvalidQuantity)
		}
		if ev.Quantity < 0 {
			return nil, fmt.Errorf("event %q: %w", ev.ID, ErrNegativeQuantity)
		}
	}

	sortTimeline(timeline)

	balance := 0.0
	for _, ev := range timeline {
		balance += ev.Signed()
		if balance < -v.epsilon {
			label := proposed.AssetLabel
			if label == "" {
				label = ev.AssetLabel
			}
			violation := &Violation{
				Event:      ev,
				Balance:    balance,
				AssetLabel: label,
				Timeline:   timeline,
			}
			v.logger.Info("Mutation would produce a negative holding",
				zap.Stringer("action", action),
				zap.String("asset", label),
				zap.Time("date", ev.Timestamp),
				zap.Float64("balance", balance),
			)
			return violation, nil
		}
	}
	return nil, nil
}

// apply builds the working timeline for action on a clone of existing.
func (v *Validator) apply(existing []Event, action Action, proposed Event, targetID string) ([]Event, error) {
	timeline := slices.Clone(existing)

	switch action {
	case ActionCreate:
		return append(timeline, proposed), nil
	case ActionEdit, ActionDelete:
		if targetID == "" {
			return nil, ErrMissingTargetID
		}
		before := len(timeline)
		timeline = slices.DeleteFunc(timeline, func(ev Event) bool { return ev.ID == targetID })
		if len(timeline) == before && !v.tolerateMissingTarget {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
		}
		if action == ActionDelete {
			return timeline, nil
		}
		if proposed.ID == "" {
			proposed.ID = targetID
		}
		return append(timeline, proposed), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownAction, int(action))
}

// Violation describes the first point in time where the holding goes negative.
type Violation struct {
	// Event is the operation after which the balance dropped below zero.
	Event   Event   `json:"event"`
	Balance float64 `json:"balance"`
	// AssetLabel names the asset in Message.
	AssetLabel string `json:"asset_label"`
	// Timeline is the sorted history the check ran on.
	Timeline []Event `json:"timeline"`
}

func (v *Violation) Date() string {
	return v.Event.Timestamp.Format("2006-01-02")
}

func (v *Violation) Message() string {
	label := v.AssetLabel
	if label == "" {
		label = "the asset"
	}
	return fmt.Sprintf("operation would leave %s with a negative balance of %s on %s",
		label, strconv.FormatFloat(v.Balance, 'f', -1, 64), v.Date())
}

func (v *Violation) Error() string { return v.Message() }
