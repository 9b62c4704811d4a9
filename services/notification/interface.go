package notification

import (
	"context"
	"sync"

	"flexify/utils"

	"go.uber.org/zap"
)

// Permission is the system notification permission state.
type Permission int

const (
	// PermissionDefault means the user has not been asked yet.
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Notifier surfaces system notifications outside the in-app feed.
type Notifier interface {
	Permission() Permission
	// RequestPermission prompts the user and returns the resulting state.
	RequestPermission(ctx context.Context) (Permission, error)
	Show(title, body string) error
}

// LogNotifier writes notifications to the logger. It grants permission on
// request unless Deny is set.
type LogNotifier struct {
	Logger *zap.Logger
	Deny   bool

	mu   sync.Mutex
	perm Permission
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{Logger: utils.OrNop(logger)}
}

func (n *LogNotifier) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

func (n *LogNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.perm == PermissionDefault {
		if n.Deny {
			n.perm = PermissionDenied
		} else {
			n.perm = PermissionGranted
		}
	}
	return n.perm, nil
}

func (n *LogNotifier) Show(title, body string) error {
	utils.OrNop(n.Logger).Info(title, zap.String("body", body))
	return nil
}
