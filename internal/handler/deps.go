package handler

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"campuschat/internal/app/chat"
	"campuschat/internal/app/moderation"
	"campuschat/internal/configs"
	"campuschat/internal/pkg/auth/jwt"
)

// OnlineReader returns online counts for durable rooms summed over every instance.
type OnlineReader interface {
	Online(ctx context.Context) (map[chat.RoomID]int, error)
}

type AppDeps struct {
	Manager    *chat.Manager
	Config     *configs.AppConfig
	Verifier   *jwt.Verifier
	Moderation *moderation.Filter

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer

	// Presence is optional; without it room listings use this instance's counts only.
	Presence OnlineReader
}
