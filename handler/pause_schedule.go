package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"
	"github.com/zllovesuki/rtdn/subscription"

	"go.uber.org/zap"
)

// PauseScheduleHandler schedules the end of access when a pause is set, and lifts it when the pause is withdrawn
type PauseScheduleHandler struct {
	base
}

var _ Handler = &PauseScheduleHandler{}

func (h *PauseScheduleHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	logger := h.logger(args)

	sub, err := h.handleable(ctx, h.Repository, args.PurchaseToken)
	if err != nil {
		return response.FAIL, err
	}

	if args.Snapshot.AutoResumeTime == nil {
		if !subscription.CanActivate(sub) {
			return response.FAIL, response.ErrSubscriptionCannotCancel(sub.ID, string(sub.Status))
		}
		err := h.transition(ctx, h.Repository, sub, func(s *subscription.Subscription) {
			subscription.Activate(s, subscription.ReasonGoogleResumed)
		})
		if err != nil {
			return response.FAIL, err
		}
		logger.Info("Subscription pause withdrawn",
			zap.String("SubscriptionID", sub.ID),
		)
		return response.SUCCESS, nil
	}

	until := args.Snapshot.ExpiryDate()
	if sub.Status == subscription.StatusActive && subscription.SameDay(sub.ValidUntil, until) {
		logger.Info("Pause already scheduled",
			zap.String("SubscriptionID", sub.ID),
		)
		return response.SUCCESS, nil
	}
	if !subscription.CanCancel(sub) {
		return response.FAIL, response.ErrSubscriptionCannotCancel(sub.ID, string(sub.Status))
	}
	err = h.transition(ctx, h.Repository, sub, func(s *subscription.Subscription) {
		subscription.Cancel(s, until, subscription.ReasonGooglePauseScheduled)
	})
	if err != nil {
		return response.FAIL, err
	}

	logger.Info("Subscription pause scheduled",
		zap.String("SubscriptionID", sub.ID),
		zap.Time("ValidUntil", until),
		zap.Time("AutoResumeTime", *args.Snapshot.AutoResumeTime),
	)
	return response.SUCCESS, nil
}
