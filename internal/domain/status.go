package domain

import "time"

type AppStatus string

const (
	StatusPending   AppStatus = "PENDING"
	StatusReviewing AppStatus = "REVIEWING"
	StatusAccepted  AppStatus = "ACCEPTED"
	StatusRejected  AppStatus = "REJECTED"
	StatusWithdrawn AppStatus = "WITHDRAWN"
)

// AppStatuses lists every known application status in display order.
var AppStatuses = []AppStatus{StatusPending, StatusReviewing, StatusAccepted, StatusRejected, StatusWithdrawn}

func (s AppStatus) Valid() bool {
	for _, known := range AppStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// StatusChange is one entry of an application's status ledger.
// PreviousStatus is nil only on the creation record.
type StatusChange struct {
	Seq            int        `json:"seq"`
	Status         AppStatus  `json:"status"`
	PreviousStatus *AppStatus `json:"previous_status,omitempty"`
	ChangedBy      string     `json:"changed_by"`
	ChangedAt      time.Time  `json:"changed_at"`
}

// StatusHistory is the append-only ledger of status changes, oldest first.
type StatusHistory []StatusChange

// Last returns the newest entry.
func (h StatusHistory) Last() (StatusChange, bool) {
	if len(h) == 0 {
		return StatusChange{}, false
	}
	return h[len(h)-1], true
}

// Start returns a ledger holding only the creation record.
func Start(actorID string, at time.Time) StatusHistory {
	return StatusHistory{{Seq: 1, Status: StatusPending, ChangedBy: actorID, ChangedAt: at}}
}

// AppendIfChanged appends a change from current to next unless they are equal.
// The receiver is never modified; the returned ledger shares no backing array with it.
func (h StatusHistory) AppendIfChanged(current, next AppStatus, actorID string, at time.Time) (StatusHistory, *StatusChange) {
	if current == next {
		return h, nil
	}
	prev := current
	entry := StatusChange{
		Seq:            len(h) + 1,
		Status:         next,
		PreviousStatus: &prev,
		ChangedBy:      actorID,
		ChangedAt:      at,
	}
	out := make(StatusHistory, len(h), len(h)+1)
	copy(out, h)
	out = append(out, entry)
	return out, &out[len(out)-1]
}

// Consistent reports whether the ledger agrees with the current status.
func (h StatusHistory) Consistent(status AppStatus) bool {
	last, ok := h.Last()
	return !ok || last.Status == status
}
