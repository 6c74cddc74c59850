package router

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"rollcall/pkg/interfaces"
	"rollcall/pkg/types"
)

// Router maps inbound realtime events onto coordinator operations and decides
// who hears about the result. It implements interfaces.EventRouter.
type Router struct {
	coordinator interfaces.Coordinator
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// NewRouter builds a router allowing rateLimit events per user per minute.
func NewRouter(coordinator interfaces.Coordinator, rateLimit int, logger zerolog.Logger) *Router {
	return &Router{
		coordinator: coordinator,
		rateLimiter: NewRateLimiter(rateLimit),
		logger:      logger.With().Str("component", "router").Logger(),
	}
}

// Route handles one raw frame from caller.
//
// Frames that are not valid JSON, or whose data does not decode into the
// event's payload, are dropped. Unknown event names get an ACK. Coordinator
// errors go back to the sender only.
func (r *Router) Route(ctx context.Context, caller types.Identity, data []byte) types.Delivery {
	var envelope types.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Event == "" {
		r.logger.Debug().Str("user_id", caller.UserID).Msg("ignoring malformed frame")
		return types.Delivery{Scope: types.DeliverNone}
	}

	if !r.rateLimiter.Allow(caller.UserID) {
		r.logger.Warn().Str("user_id", caller.UserID).Str("event", envelope.Event).Msg("rate limit exceeded")
		return errorDelivery(envelope.Event, ErrRateLimitExceeded)
	}

	switch envelope.Event {
	case types.EventAttendanceMarked:
		var p types.MarkPayload
		if !decode(envelope.Data, &p) {
			return r.ignore(caller, envelope.Event)
		}
		marked, err := r.coordinator.MarkAttendance(ctx, caller, p.ClassID, p.StudentID, p.Status)
		if err != nil {
			return r.fail(caller, envelope.Event, err)
		}
		return broadcast(types.EventAttendanceMarked, marked)

	case types.EventTodaySummary:
		var p types.ClassPayload
		if !decode(envelope.Data, &p) {
			return r.ignore(caller, envelope.Event)
		}
		summary, err := r.coordinator.GetSummary(ctx, caller, p.ClassID)
		if err != nil {
			return r.fail(caller, envelope.Event, err)
		}
		return broadcast(types.EventTodaySummary, summary)

	case types.EventMyAttendance:
		var p types.PersonalPayload
		if !decode(envelope.Data, &p) {
			return r.ignore(caller, envelope.Event)
		}
		if p.StudentID == "" {
			p.StudentID = caller.UserID
		}
		status, err := r.coordinator.GetPersonalStatus(ctx, caller, p.ClassID, p.StudentID)
		if err != nil {
			return r.fail(caller, envelope.Event, err)
		}
		return toSender(types.EventMyAttendance, status)

	case types.EventDone:
		var p types.ClassPayload
		if !decode(envelope.Data, &p) {
			return r.ignore(caller, envelope.Event)
		}
		result, err := r.coordinator.CloseSession(ctx, caller, p.ClassID)
		if err != nil {
			return r.fail(caller, envelope.Event, err)
		}
		return broadcast(types.EventDone, result)

	default:
		return toSender(types.EventAck, types.AckPayload{
			Event:   envelope.Event,
			Message: "event not recognised",
		})
	}
}

// CleanupLimits drops rate-limit state for idle users.
func (r *Router) CleanupLimits() {
	r.rateLimiter.Cleanup()
}

func (r *Router) ignore(caller types.Identity, event string) types.Delivery {
	r.logger.Debug().Str("user_id", caller.UserID).Str("event", event).Msg("ignoring undecodable payload")
	return types.Delivery{Scope: types.DeliverNone}
}

func (r *Router) fail(caller types.Identity, event string, err error) types.Delivery {
	code := interfaces.ErrorCode(err)
	evt := r.logger.Info()
	if code == interfaces.CodeFailed {
		evt = r.logger.Error()
	}
	evt.Err(err).Str("user_id", caller.UserID).Str("event", event).Str("code", code).Msg("event rejected")
	return errorDelivery(event, err)
}

// decode treats an absent data field as an empty payload.
func decode(raw json.RawMessage, v interface{}) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	return json.Unmarshal(raw, v) == nil
}

func errorDelivery(event string, err error) types.Delivery {
	return toSender(types.EventError, types.ErrorPayload{
		Event:   event,
		Code:    interfaces.ErrorCode(err),
		Message: err.Error(),
	})
}

func broadcast(event string, data interface{}) types.Delivery {
	return types.Delivery{Scope: types.DeliverBroadcast, Notification: types.NewNotification(event, data)}
}

func toSender(event string, data interface{}) types.Delivery {
	return types.Delivery{Scope: types.DeliverSender, Notification: types.NewNotification(event, data)}
}
