// internal/app/system/auth/pending.go
package auth

import (
	"net/http"
)

// Session keys for the pending federated-login context. They are set when
// a reservation is in progress, survive the redirect to the identity
// provider, and are consumed exactly once by the callback.
const (
	pendingContextTypeKey = "openid_context_type"
	pendingContextIDKey   = "openid_context_id"
	pendingReservationKey = "openid_reservation_id"
)

// PendingContext is the session-scoped triple captured before redirecting
// to the external identity provider. An empty ReservationID means no
// reservation was in progress.
type PendingContext struct {
	ContextType   string
	ContextID     string
	ReservationID string
}

// Pending reports whether a reservation is attached to the context.
func (pc PendingContext) Pending() bool { return pc.ReservationID != "" }

// ContinuationPath is where the callback sends the browser to resume the
// reservation.
func (pc PendingContext) ContinuationPath() string {
	return "/" + pc.ContextType + "/" + pc.ContextID + "/reservation/" + pc.ReservationID + "/book"
}

// StashPending records the pending context in the session. The reservation
// flow calls this when a booking begins; the login-initiation handler
// deliberately leaves it in place so the callback can find it. Concurrent
// tabs race on this slot; last writer wins.
func (sm *SessionManager) StashPending(w http.ResponseWriter, r *http.Request, pc PendingContext) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.log.Warn("session decode failed while stashing pending context")
	}
	sess.Values[pendingContextTypeKey] = pc.ContextType
	sess.Values[pendingContextIDKey] = pc.ContextID
	sess.Values[pendingReservationKey] = pc.ReservationID
	return sess.Save(r, w)
}

// ConsumePending returns the pending context and unconditionally clears it
// from the session in the same operation. A second call without a fresh
// stash finds nothing. The bool is false when no reservation was pending.
func (sm *SessionManager) ConsumePending(w http.ResponseWriter, r *http.Request) (PendingContext, bool, error) {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.log.Warn("session decode failed while consuming pending context")
	}

	pc := PendingContext{
		ContextType:   getString(sess, pendingContextTypeKey),
		ContextID:     getString(sess, pendingContextIDKey),
		ReservationID: getString(sess, pendingReservationKey),
	}

	delete(sess.Values, pendingContextTypeKey)
	delete(sess.Values, pendingContextIDKey)
	delete(sess.Values, pendingReservationKey)
	if err := sess.Save(r, w); err != nil {
		return PendingContext{}, false, err
	}

	return pc, pc.Pending(), nil
}
