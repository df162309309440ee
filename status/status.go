package status

import (
	"fmt"
)

// Status is the authoritative classification of one account.
type Status string

const (
	StatusPending  Status = "pending"
	StatusBanned   Status = "banned"
	StatusOrganic  Status = "organic"
	StatusService  Status = "service"
	StatusDeclined Status = "declined"
	StatusInactive Status = "inactive"
	StatusPurged   Status = "purged"
	StatusRetired  Status = "retired"
)

// AllStatuses is the closed set of valid status values, in display order.
var AllStatuses = []Status{
	StatusPending,
	StatusBanned,
	StatusOrganic,
	StatusService,
	StatusDeclined,
	StatusInactive,
	StatusPurged,
	StatusRetired,
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	for _, other := range AllStatuses {
		if s == other {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown classification status: %q", raw)
	}
	return s, nil
}

// Settled reports whether the status is one of the four reviewed end states.
// Only settled statuses are preserved in PreviousStatus when an account later
// becomes unreachable.
func (s Status) Settled() bool {
	switch s {
	case StatusBanned, StatusOrganic, StatusService, StatusDeclined:
		return true
	}
	return false
}

// flair template identifiers on the tracking record, one per status
var statusFlairs = map[Status]string{
	StatusPending:  "flair-pending",
	StatusBanned:   "flair-banned",
	StatusOrganic:  "flair-organic",
	StatusService:  "flair-service",
	StatusDeclined: "flair-declined",
	StatusInactive: "flair-inactive",
	StatusPurged:   "flair-purged",
	StatusRetired:  "flair-retired",
}

// FlairID returns the external flair template identifier for the status.
func (s Status) FlairID() string {
	return statusFlairs[s]
}

// FromFlairID maps an external flair template identifier back to a status.
func FromFlairID(flair string) (Status, error) {
	for s, f := range statusFlairs {
		if f == flair {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status flair: %q", flair)
}

// Interpretation is the downstream human-vs-bot reading of a record,
// independent of how the account was last observed.
type Interpretation string

const (
	InterpretationUnknown Interpretation = "unknown"
	InterpretationHuman   Interpretation = "human"
	InterpretationBot     Interpretation = "bot"
)

func interpret(s Status) Interpretation {
	switch s {
	case StatusBanned, StatusDeclined:
		return InterpretationBot
	case StatusOrganic, StatusService:
		return InterpretationHuman
	}
	return InterpretationUnknown
}

// maxUnwindDepth bounds PreviousStatus unwinding. The writer side never stores
// purged/retired as a previous status, but that invariant is enforced upstream
// of this package, so the loop carries its own bound.
const maxUnwindDepth = 8

// Effective derives the human/bot interpretation of a record. For accounts
// that became unreachable (purged or retired) it unwinds PreviousStatus to
// recover the judgment that was in force before the account disappeared.
func Effective(rec *Record) Interpretation {
	if rec == nil {
		return InterpretationUnknown
	}
	cur := rec.Status
	prev := rec.PreviousStatus
	for i := 0; i < maxUnwindDepth; i++ {
		switch cur {
		case StatusPurged, StatusRetired:
			if prev == nil {
				return InterpretationUnknown
			}
			cur = *prev
			prev = nil
		default:
			return interpret(cur)
		}
	}
	return InterpretationUnknown
}
