// Package service implements the negotiation workflow: the state machine,
// authorization guard, item aggregation, forking, expiration sweep and the
// domain events published after committed transitions.
package service

// Capabilities gating negotiation operations. Resolution of which actor
// holds which capability happens upstream (session handling is out of
// scope); operations receive the resolved set.
const (
	// CapManage allows creating, submitting and cancelling negotiations.
	CapManage = "negotiations.manage"
	// CapDecide allows approving, rejecting and rolling back negotiations.
	CapDecide = "negotiations.decide"
	// CapOverride lifts the self-action and terminal-state restrictions.
	CapOverride = "negotiations.override"
)

// Actor is the explicit identity performing an operation. There is no
// ambient current-user lookup anywhere in this package.
type Actor struct {
	ID           string
	Capabilities []string
}

// Has reports whether the actor holds a capability.
func (a Actor) Has(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
