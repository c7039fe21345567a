package service

import (
	"context"
	"fmt"

	"github.com/vitalle-health/be-negotiations/internal/client"
	"github.com/vitalle-health/be-negotiations/internal/platform/logger"
)

// NewNotificationListener maps domain events to best-effort notices.
// Dispatch runs after the transition has committed; delivery failures are
// the dispatcher's to swallow and never affect the negotiation.
func NewNotificationListener(dispatcher client.Dispatcher, log *logger.Logger) ListenerFunc {
	return func(ctx context.Context, evt Event) {
		link := "/negotiations/" + evt.NegotiationID

		switch evt.Type {
		case EventSubmitted:
			dispatcher.SendToRole(ctx, client.RoleApprovers, client.Notice{
				Title:      "Negotiation awaiting approval",
				Body:       fmt.Sprintf("Negotiation %q was submitted for approval.", evt.Title),
				ActionLink: link,
				Priority:   "info",
			})

		case EventApproved:
			dispatcher.SendToUser(ctx, evt.CreatorID, client.Notice{
				Title:      "Negotiation approved",
				Body:       fmt.Sprintf("Negotiation %q was fully approved. Formalization is underway.", evt.Title),
				ActionLink: link,
				Priority:   "info",
			})

		case EventRejected:
			dispatcher.SendToUser(ctx, evt.CreatorID, client.Notice{
				Title:      "Negotiation rejected",
				Body:       fmt.Sprintf("Negotiation %q was rejected.", evt.Title),
				ActionLink: link,
				Priority:   "warning",
			})

		case EventPartiallyApproved:
			body := fmt.Sprintf(
				"Negotiation %q was partially approved: %d item(s) approved, %d unresolved item(s) carried into negotiation %s.",
				evt.Title, evt.ApprovedItems, evt.CarriedItems, evt.ForkID,
			)
			dispatcher.SendToUser(ctx, evt.CreatorID, client.Notice{
				Title:      "Negotiation partially approved",
				Body:       body,
				ActionLink: link,
				Priority:   "info",
			})
			dispatcher.SendToRole(ctx, client.RoleOperations, client.Notice{
				Title:      "Negotiation forked",
				Body:       body,
				ActionLink: "/negotiations/" + evt.ForkID,
				Priority:   "info",
			})

		case EventExpired:
			dispatcher.SendToUser(ctx, evt.CreatorID, client.Notice{
				Title:      "Negotiation expired",
				Body:       fmt.Sprintf("Approved negotiation %q expired before its aditivo was formalized.", evt.Title),
				ActionLink: link,
				Priority:   "warning",
			})
			dispatcher.SendToRole(ctx, client.RoleOperations, client.Notice{
				Title:      "Negotiation expired",
				Body:       fmt.Sprintf("Negotiation %q expired awaiting formalization.", evt.Title),
				ActionLink: link,
				Priority:   "warning",
			})

		case EventRolledBack:
			dispatcher.SendToUser(ctx, evt.CreatorID, client.Notice{
				Title:      "Negotiation status rolled back",
				Body:       fmt.Sprintf("Negotiation %q was rolled back to a previous status.", evt.Title),
				ActionLink: link,
				Priority:   "info",
			})

		case EventCreated, EventCancelled:
			// Actor-visible outcomes of the actor's own action; no notice.

		default:
			log.Warn().Str("event_type", string(evt.Type)).Msg("Unhandled domain event")
		}
	}
}
