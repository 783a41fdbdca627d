package handler

import (
	"context"

	"github.com/zllovesuki/rtdn/response"

	"go.uber.org/zap"
)

// IgnoreHandler acknowledges notifications that carry nothing to apply
type IgnoreHandler struct {
	base
}

var _ Handler = &IgnoreHandler{}

func (h *IgnoreHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	h.logger(args).Debug("Notification ignored")
	return response.SUCCESS, nil
}

// UnknownHandler receives every notification type without a dedicated handler
type UnknownHandler struct {
	base
}

var _ Handler = &UnknownHandler{}

func (h *UnknownHandler) Handle(ctx context.Context, args Args) (response.Result, error) {
	h.logger(args).Warn("Unknown notification type, skipping",
		zap.Int("RawType", int(args.Type)),
	)
	return response.SUCCESS, nil
}
