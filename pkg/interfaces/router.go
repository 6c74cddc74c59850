package interfaces

import (
	"context"

	"rollcall/pkg/types"
)

// EventRouter turns one raw inbound realtime message into a delivery
// decision. It never returns an error; failures become ERROR notifications
// addressed to the sender.
type EventRouter interface {
	Route(ctx context.Context, caller types.Identity, data []byte) types.Delivery
}
