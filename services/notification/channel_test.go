package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"flexify/models"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu     sync.Mutex
	writes []envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{incoming: make(chan []byte, 10), closed: make(chan struct{})}
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case b := <-c.incoming:
		return json.Unmarshal(b, v)
	case <-c.closed:
		return errors.New("connection closed")
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v.(envelope))
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() []envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]envelope(nil), c.writes...)
}

type fakeDialer struct {
	mu      sync.Mutex
	headers []http.Header
	conns   []*fakeConn
	fail    bool
}

func (d *fakeDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headers = append(d.headers, header.Clone())
	if d.fail {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.headers)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

type fakeNotifier struct {
	mu      sync.Mutex
	perm    Permission
	answer  Permission
	prompts int
	shown   []string
}

func (n *fakeNotifier) Permission() Permission {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.perm
}

func (n *fakeNotifier) RequestPermission(ctx context.Context) (Permission, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.prompts++
	n.perm = n.answer
	return n.perm, nil
}

func (n *fakeNotifier) Show(title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, body)
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func session(id string, role models.Role, token string) *models.Session {
	return &models.Session{Token: token, User: models.User{ID: id, Role: role}, Role: role}
}

func TestChannelConnectsAndJoinsRoleRoom(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(ChannelOptions{URL: "ws://push", Dialer: dialer, Notifier: &fakeNotifier{}})
	defer ch.Close()

	if ch.State() != Disconnected {
		t.Fatalf("initial state %v", ch.State())
	}
	ch.HandleSession(session("p1", models.RoleProvider, "tok-1"))
	waitFor(t, "join message", func() bool { return dialer.dials() == 1 && len(dialer.conn(0).written()) == 1 })

	if got := dialer.conn(0).written()[0].Event; got != "join-provider-room" {
		t.Fatalf("join event = %q", got)
	}
	if got := dialer.headers[0].Get("Authorization"); got != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", got)
	}
	if ch.State() != Connected {
		t.Fatalf("state = %v, want connected", ch.State())
	}

	dialer.conn(0).incoming <- []byte(`{"event":"new-booking","data":{"message":"New job from Asha","bookingId":"b-7"}}`)
	dialer.conn(0).incoming <- []byte(`{"event":"typing","data":{}}`)
	dialer.conn(0).incoming <- []byte(`{"event":"payment-received","data":{}}`)
	waitFor(t, "events", func() bool { return len(ch.Notifications()) == 2 })

	list := ch.Notifications()
	if list[0].Type != models.EventPaymentReceived || list[0].Message != defaultMessages[models.EventPaymentReceived] {
		t.Fatalf("newest = %+v", list[0])
	}
	if list[1].BookingID != "b-7" || list[1].Message != "New job from Asha" {
		t.Fatalf("oldest = %+v", list[1])
	}
}

func TestChannelSessionChanges(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(ChannelOptions{Dialer: dialer, Notifier: &fakeNotifier{}})
	defer ch.Close()

	ch.HandleSession(session("u1", models.RoleUser, "tok-1"))
	waitFor(t, "first connection", func() bool { return ch.State() == Connected })

	// A refreshed token for the same account keeps the connection.
	ch.HandleSession(session("u1", models.RoleUser, "tok-2"))
	time.Sleep(20 * time.Millisecond)
	if dialer.dials() != 1 {
		t.Fatalf("token refresh caused %d dials", dialer.dials())
	}

	// Another account gets a new connection.
	ch.HandleSession(session("u2", models.RoleUser, "tok-3"))
	waitFor(t, "second connection", func() bool { return dialer.dials() == 2 && ch.State() == Connected })
	select {
	case <-dialer.conn(0).closed:
	default:
		t.Fatal("previous connection left open")
	}

	ch.HandleSession(nil)
	if ch.State() != Disconnected {
		t.Fatalf("state after logout = %v", ch.State())
	}
	time.Sleep(20 * time.Millisecond)
	if dialer.dials() != 2 {
		t.Fatal("reconnected after teardown")
	}
}

func TestChannelAdminJoinsNoRoom(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(ChannelOptions{Dialer: dialer, Notifier: &fakeNotifier{}})
	defer ch.Close()

	ch.HandleSession(session("a1", models.RoleAdmin, "tok"))
	waitFor(t, "connection", func() bool { return ch.State() == Connected })
	if w := dialer.conn(0).written(); len(w) != 0 {
		t.Fatalf("admin sent %+v", w)
	}
}

func TestChannelReconnectsWithLatestToken(t *testing.T) {
	dialer := &fakeDialer{}
	ch := NewChannel(ChannelOptions{
		Dialer:       dialer,
		Notifier:     &fakeNotifier{},
		ReconnectMin: 5 * time.Millisecond,
		ReconnectMax: 10 * time.Millisecond,
	})
	defer ch.Close()

	ch.HandleSession(session("u1", models.RoleUser, "tok-1"))
	waitFor(t, "connection", func() bool { return ch.State() == Connected })
	ch.HandleSession(session("u1", models.RoleUser, "tok-2"))

	dialer.conn(0).Close()
	waitFor(t, "reconnect", func() bool { return dialer.dials() == 2 })

	dialer.mu.Lock()
	got := dialer.headers[1].Get("Authorization")
	dialer.mu.Unlock()
	if got != "Bearer tok-2" {
		t.Fatalf("reconnect used %q", got)
	}
}

func TestChannelToleratesUnreachableServer(t *testing.T) {
	dialer := &fakeDialer{fail: true}
	ch := NewChannel(ChannelOptions{
		Dialer:       dialer,
		Notifier:     &fakeNotifier{},
		ReconnectMin: time.Millisecond,
		ReconnectMax: 2 * time.Millisecond,
	})

	ch.HandleSession(session("u1", models.RoleUser, "tok"))
	waitFor(t, "retries", func() bool { return dialer.dials() >= 3 })

	n := ch.OnEvent(models.NotificationEvent{Type: models.EventBookingReminder, Message: "Plumber at 10:00"})
	if n.ID == 0 || len(ch.Notifications()) != 1 {
		t.Fatal("feed unusable without a connection")
	}

	ch.Close()
	dials := dialer.dials()
	time.Sleep(20 * time.Millisecond)
	if dialer.dials() != dials {
		t.Fatal("dialing continued after Close")
	}
	ch.HandleSession(session("u1", models.RoleUser, "tok"))
	if ch.State() != Disconnected {
		t.Fatal("closed channel reconnected")
	}
}

func TestRequestPermission(t *testing.T) {
	tests := []struct {
		name        string
		initial     Permission
		answer      Permission
		want        bool
		wantPrompts int
	}{
		{"prompts when undecided", PermissionDefault, PermissionGranted, true, 1},
		{"user declines", PermissionDefault, PermissionDenied, false, 1},
		{"never re-prompts after denial", PermissionDenied, PermissionGranted, false, 0},
		{"already granted", PermissionGranted, PermissionDenied, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{perm: tt.initial, answer: tt.answer}
			ch := NewChannel(ChannelOptions{Dialer: &fakeDialer{}, Notifier: notifier})
			defer ch.Close()

			if got := ch.RequestPermission(context.Background()); got != tt.want {
				t.Fatalf("RequestPermission = %v, want %v", got, tt.want)
			}
			if notifier.prompts != tt.wantPrompts {
				t.Fatalf("prompts = %d, want %d", notifier.prompts, tt.wantPrompts)
			}
		})
	}
}

func TestOnEventShowsOnlyWhenGranted(t *testing.T) {
	notifier := &fakeNotifier{answer: PermissionGranted}
	var heard []models.Notification
	ch := NewChannel(ChannelOptions{
		Dialer:   &fakeDialer{},
		Notifier: notifier,
		Listener: func(n models.Notification) { heard = append(heard, n) },
	})
	defer ch.Close()

	ch.OnEvent(models.NotificationEvent{Type: models.EventNewBooking, Message: "first"})
	ch.RequestPermission(context.Background())
	ch.OnEvent(models.NotificationEvent{Type: models.EventNewBooking, Message: "second"})

	if len(notifier.shown) != 1 || notifier.shown[0] != "second" {
		t.Fatalf("shown = %v", notifier.shown)
	}
	if len(heard) != 2 {
		t.Fatalf("listener heard %d", len(heard))
	}

	first := ch.Notifications()[1]
	ch.Dismiss(first.ID)
	ch.Dismiss(first.ID)
	if len(ch.Notifications()) != 1 {
		t.Fatal("Dismiss removed the wrong entries")
	}
	ch.ClearAll()
	if len(ch.Notifications()) != 0 {
		t.Fatal("ClearAll left entries")
	}
}

func TestWebsocketDialerEndToEnd(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer live-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var join envelope
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joined <- join.Event
		conn.WriteJSON(map[string]any{
			"event": "booking-status-update",
			"data":  map[string]any{"message": "Booking confirmed", "bookingId": "b-1"},
		})
		conn.ReadMessage()
	}))
	defer srv.Close()

	ch := NewChannel(ChannelOptions{
		URL:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Notifier: &fakeNotifier{},
	})
	defer ch.Close()
	ch.HandleSession(session("u1", models.RoleUser, "live-token"))

	select {
	case room := <-joined:
		if room != "join-user-room" {
			t.Fatalf("joined %q", room)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw a join")
	}
	waitFor(t, "status update", func() bool { return len(ch.Notifications()) == 1 })
	if n := ch.Notifications()[0]; n.Type != models.EventBookingStatusUpdate || n.BookingID != "b-1" {
		t.Fatalf("notification = %+v", n)
	}
}
