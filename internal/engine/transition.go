package engine

import (
	"time"

	"jobboard/internal/domain"
)

// ApplyTransition moves app to next on behalf of actorID. Any known status
// other than the current one is accepted. An unchanged status returns app as
// is with a nil change; otherwise the returned copy carries the appended
// ledger entry and respondedAt set to now.
func ApplyTransition(app domain.Application, next domain.AppStatus, actorID string, now time.Time) (domain.Application, *domain.StatusChange, error) {
	if !next.Valid() {
		return app, nil, InvalidTransitionError{From: string(app.Status), To: string(next)}
	}
	history, change := app.StatusHistory.AppendIfChanged(app.Status, next, actorID, now)
	if change == nil {
		return app, nil, nil
	}
	app.StatusHistory = history
	app.Status = next
	at := now
	app.RespondedAt = &at
	return app, change, nil
}
