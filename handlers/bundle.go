package handlers

import (
	"time"

	sandboxRepo "flexify/database/repository/sandbox"
	"flexify/utils"

	"go.uber.org/zap"
)

// HandlerBundle groups the sandbox endpoint handlers and what they share.
type HandlerBundle struct {
	Repo       sandboxRepo.Repository
	Hub        *PushHub
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Logger     *zap.Logger
}

// NewHandlerBundle wires the handlers to repo. A zero accessTTL means 15
// minutes; refresh tokens live a week.
func NewHandlerBundle(repo sandboxRepo.Repository, secret []byte, accessTTL time.Duration, logger *zap.Logger) *HandlerBundle {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	logger = utils.OrNop(logger)
	return &HandlerBundle{
		Repo:       repo,
		Hub:        NewPushHub(logger),
		Secret:     secret,
		AccessTTL:  accessTTL,
		RefreshTTL: 7 * 24 * time.Hour,
		Logger:     logger,
	}
}
