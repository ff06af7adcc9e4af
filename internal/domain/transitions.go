package domain

import "fmt"

// Transition is one of the closed set of lifecycle moves a booking can make.
type Transition string

const (
	TransitionApprove  Transition = "approve"
	TransitionReject   Transition = "reject"
	TransitionCancel   Transition = "cancel"
	TransitionComplete Transition = "complete"
)

var allowedFrom = map[Transition][]BookingStatus{
	TransitionApprove:  {BookingPending},
	TransitionReject:   {BookingPending},
	TransitionCancel:   {BookingPending, BookingApproved},
	TransitionComplete: {BookingApproved},
}

// Target returns the status a booking ends up in after the transition.
func (t Transition) Target() BookingStatus {
	switch t {
	case TransitionApprove:
		return BookingApproved
	case TransitionReject:
		return BookingRejected
	case TransitionCancel:
		return BookingCancelled
	case TransitionComplete:
		return BookingCompleted
	}
	panic(fmt.Sprintf("domain: unknown transition %q", string(t)))
}

// RequiresReason reports whether the transition must carry a non-empty reason.
func (t Transition) RequiresReason() bool {
	return t == TransitionReject || t == TransitionCancel
}

// CanTransition reports whether t is legal from status s.
func (s BookingStatus) CanTransition(t Transition) bool {
	for _, from := range allowedFrom[t] {
		if from == s {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingRejected, BookingCancelled, BookingCompleted:
		return true
	case BookingPending, BookingApproved:
		return false
	}
	return false
}

func (s BookingStatus) IsActive() bool {
	return s == BookingPending || s == BookingApproved
}

func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingPending, BookingApproved, BookingRejected, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

func (s BookingStatus) String() string { return string(s) }

func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
