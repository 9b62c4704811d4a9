package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"flexify/models"
	"flexify/utils"

	"go.uber.org/zap"
)

// State is the connection state of a Channel.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// NotificationTitle is the title of system notifications.
const NotificationTitle = "Flexify"

var defaultMessages = map[models.EventType]string{
	models.EventNewBooking:           "You have a new booking request",
	models.EventBookingStatusUpdate:  "Your booking status has changed",
	models.EventPaymentConfirmed:     "Your payment has been confirmed",
	models.EventPaymentReceived:      "You have received a payment",
	models.EventBookingAutoCancelled: "A booking was cancelled automatically",
	models.EventBookingReminder:      "You have an upcoming booking",
}

// ChannelOptions configure a Channel.
type ChannelOptions struct {
	URL      string
	Dialer   Dialer
	Notifier Notifier
	Logger   *zap.Logger
	// Limit caps the feed (DefaultFeedLimit when zero).
	Limit        int
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	// Listener, when set, is called for every new feed entry.
	Listener func(models.Notification)
	Now      func() time.Time
}

// Channel keeps a push connection scoped to the current session and the
// notification feed fed by it. Connection failures are logged only; the feed
// works without a connection.
type Channel struct {
	url          string
	dialer       Dialer
	notifier     Notifier
	logger       *zap.Logger
	listener     func(models.Notification)
	reconnectMin time.Duration
	reconnectMax time.Duration

	feed  *Feed
	state atomic.Int32

	// switchMu serializes session switches.
	switchMu sync.Mutex

	mu     sync.Mutex
	key    string
	token  string
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

func NewChannel(opts ChannelOptions) *Channel {
	c := &Channel{
		url:          opts.URL,
		dialer:       opts.Dialer,
		notifier:     opts.Notifier,
		logger:       utils.OrNop(opts.Logger),
		listener:     opts.Listener,
		reconnectMin: opts.ReconnectMin,
		reconnectMax: opts.ReconnectMax,
		feed:         NewFeed(opts.Limit, opts.Now),
	}
	if c.dialer == nil {
		c.dialer = WebsocketDialer{}
	}
	if c.notifier == nil {
		c.notifier = NewLogNotifier(opts.Logger)
	}
	if c.reconnectMin <= 0 {
		c.reconnectMin = time.Second
	}
	if c.reconnectMax < c.reconnectMin {
		c.reconnectMax = 30 * time.Second
		if c.reconnectMax < c.reconnectMin {
			c.reconnectMax = c.reconnectMin
		}
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) setState(s State) {
	c.state.Store(int32(s))
}

func sessionKey(sess *models.Session) string {
	return sess.User.ID + "|" + string(sess.Role)
}

// HandleSession follows session changes. A nil session tears the connection
// down. A session for another user or role replaces the connection; a new
// token for the same user is used on the next reconnect.
func (c *Channel) HandleSession(sess *models.Session) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	if sess == nil || sess.Token == "" || sess.User.ID == "" {
		c.teardown()
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	key := sessionKey(sess)
	if c.cancel != nil && c.key == key {
		c.token = sess.Token
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.teardown()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.key = key
	c.token = sess.Token
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, sess.Role, c.done)
	c.logger.Debug("Push channel started", zap.String("userID", sess.User.ID), zap.String("role", string(sess.Role)))
}

// teardown stops the current connection loop and waits for it to exit.
func (c *Channel) teardown() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.key, c.token = "", ""
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.setState(Disconnected)
	c.logger.Debug("Push channel stopped")
}

func (c *Channel) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Channel) run(ctx context.Context, role models.Role, done chan struct{}) {
	defer close(done)
	backoff := c.reconnectMin
	for {
		connected := c.connectOnce(ctx, role)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = c.reconnectMin
		}
		c.logger.Debug("Reconnecting push channel", zap.Duration("after", backoff))
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff *= 2
		if backoff > c.reconnectMax {
			backoff = c.reconnectMax
		}
	}
}

// joinEvent names the room message for role. Admins join no room.
func joinEvent(role models.Role) string {
	switch role {
	case models.RoleProvider:
		return "join-provider-room"
	case models.RoleUser:
		return "join-user-room"
	default:
		return ""
	}
}

// connectOnce dials, joins the role room and reads events until the
// connection drops or ctx ends. It reports whether the dial succeeded.
func (c *Channel) connectOnce(ctx context.Context, role models.Role) bool {
	c.setState(Connecting)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.currentToken())
	conn, err := c.dialer.Dial(ctx, c.url, header)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("Push channel connection error", zap.String("url", c.url), zap.Error(err))
		}
		return false
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.setState(Connected)
	c.logger.Info("Connected to push channel", zap.String("url", c.url))

	if room := joinEvent(role); room != "" {
		if err := conn.WriteJSON(envelope{Event: room}); err != nil {
			c.logger.Warn("Failed to join room", zap.String("room", room), zap.Error(err))
			return true
		}
	}

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				c.logger.Info("Disconnected from push channel", zap.Error(err))
			}
			return true
		}
		c.dispatch(env)
	}
}

func (c *Channel) dispatch(env envelope) {
	evtType := models.EventType(env.Event)
	if !evtType.IsKnown() {
		c.logger.Debug("Ignoring push event", zap.String("event", env.Event))
		return
	}
	evt := models.NotificationEvent{Type: evtType}
	if len(env.Data) > 0 {
		var data map[string]any
		if err := json.Unmarshal(env.Data, &data); err != nil {
			c.logger.Warn("Malformed push event payload", zap.String("event", env.Event), zap.Error(err))
		} else {
			evt.Data = data
			evt.Message, _ = data["message"].(string)
			evt.BookingID, _ = data["bookingId"].(string)
		}
	}
	c.OnEvent(evt)
}

// OnEvent adds evt to the feed and, if permission is granted, shows a system
// notification.
func (c *Channel) OnEvent(evt models.NotificationEvent) models.Notification {
	if evt.Message == "" {
		evt.Message = defaultMessages[evt.Type]
	}
	n := c.feed.Push(evt)
	if c.notifier.Permission() == PermissionGranted {
		if err := c.notifier.Show(NotificationTitle, n.Message); err != nil {
			c.logger.Warn("Failed to show notification", zap.Error(err))
		}
	}
	if c.listener != nil {
		c.listener(n)
	}
	return n
}

// Dismiss removes one notification. Unknown ids are ignored.
func (c *Channel) Dismiss(id int64) {
	c.feed.Dismiss(id)
}

func (c *Channel) ClearAll() {
	c.feed.ClearAll()
}

// Notifications returns the feed, newest first.
func (c *Channel) Notifications() []models.Notification {
	return c.feed.List()
}

// RequestPermission prompts only while permission is undecided and reports
// whether it is granted.
func (c *Channel) RequestPermission(ctx context.Context) bool {
	perm := c.notifier.Permission()
	if perm == PermissionDefault {
		var err error
		perm, err = c.notifier.RequestPermission(ctx)
		if err != nil {
			c.logger.Warn("Notification permission request failed", zap.Error(err))
			return false
		}
	}
	return perm == PermissionGranted
}

// Close tears the connection down and stops the feed.
func (c *Channel) Close() {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.teardown()
	c.feed.Close()
}
