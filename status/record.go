package status

import (
	"time"
)

// Exemption flags. Each is only meaningful for a subset of statuses; flags
// outside that subset are pruned whenever the status changes.
const (
	// account was compromised and used by a bot, then recovered by its owner
	FlagRecovered = "recovered"
	// operators of a declared service account confirmed ownership
	FlagDeclaredService = "declared-service"
	// a previously banned account that appealed successfully
	FlagAppealGranted = "appeal-granted"
	// account is exempt from proactive sweeps (operator discretion)
	FlagSweepExempt = "sweep-exempt"
)

var flagStatuses = map[string][]Status{
	FlagRecovered:       {StatusOrganic, StatusService},
	FlagDeclaredService: {StatusService},
	FlagAppealGranted:   {StatusOrganic, StatusService, StatusDeclined},
	FlagSweepExempt:     {StatusOrganic, StatusService, StatusDeclined, StatusInactive},
}

// FlagValidFor reports whether the exemption flag may accompany the status.
// Unknown flags are never valid.
func FlagValidFor(flag string, s Status) bool {
	allowed, ok := flagStatuses[flag]
	if !ok {
		return false
	}
	for _, a := range allowed {
		if a == s {
			return true
		}
	}
	return false
}

// Record is the authoritative classification record for one account. Exactly
// one exists per account; its Status field only changes through the engine's
// transition function.
type Record struct {
	Account        string    `json:"account"`
	Status         Status    `json:"status"`
	PreviousStatus *Status   `json:"previousStatus,omitempty"`
	Submitter      string    `json:"submitter,omitempty"`
	Operator       string    `json:"operator,omitempty"`
	ReportedAt     time.Time `json:"reportedAt"`
	LastUpdate     time.Time `json:"lastUpdate"`
	Flags          []string  `json:"flags,omitempty"`
	// identifier of the tracking post on the authoritative community
	TrackingPostID string `json:"trackingPostId,omitempty"`
}

// PruneFlags drops exemption flags that are not valid for the record's
// current status. Returns the flags that were removed.
func (r *Record) PruneFlags() []string {
	if len(r.Flags) == 0 {
		return nil
	}
	var kept, dropped []string
	for _, f := range r.Flags {
		if FlagValidFor(f, r.Status) {
			kept = append(kept, f)
		} else {
			dropped = append(dropped, f)
		}
	}
	r.Flags = kept
	return dropped
}

// HasFlag reports whether the record carries the given exemption flag.
func (r *Record) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
