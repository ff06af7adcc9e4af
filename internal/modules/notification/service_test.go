package notification

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campusnest/internal/database"
	"campusnest/internal/domain"
	"campusnest/internal/repository"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev Event) error {
	return m.Called(ctx, ev).Error(0)
}

func sampleBooking() *domain.Booking {
	return &domain.Booking{
		ID:             7,
		Reference:      "CN-2026-000007",
		StudentID:      100,
		LandlordID:     200,
		Status:         domain.BookingCancelled,
		PaymentStatus:  domain.PaymentRefundPending,
		TotalAmount:    105000,
		LandlordPayout: 94500,
	}
}

func newInbox(t *testing.T) *repository.NotificationRepository {
	t.Helper()
	db, err := database.OpenTest(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	return repository.NewNotificationRepository(db)
}

func TestEmit_WritesInboxForRecipientsAndPublishes(t *testing.T) {
	inbox := newInbox(t)
	pub := new(mockPublisher)
	svc := NewService(inbox, nil, pub, nil)
	ctx := context.Background()

	ev := EventFor(domain.NotifBookingCancelled, sampleBooking(), "visa denied", time.Now().UTC())
	pub.On("Publish", mock.Anything, ev).Return(errors.New("broker down")).Once()

	svc.Emit(ctx, ev)
	svc.Wait()
	pub.AssertExpectations(t)

	for _, userID := range []int64{100, 200} {
		list, unread, err := svc.List(ctx, userID, false, 10, 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, int64(1), unread)
		assert.Equal(t, domain.NotifBookingCancelled, list[0].Type)
		assert.Contains(t, list[0].Message, "visa denied")
	}
}

func TestEmit_RecipientsByType(t *testing.T) {
	b := sampleBooking()
	at := time.Now().UTC()

	assert.Equal(t, []int64{200}, EventFor(domain.NotifBookingCreated, b, "", at).Recipients())
	assert.Equal(t, []int64{100}, EventFor(domain.NotifBookingApproved, b, "", at).Recipients())
	assert.Equal(t, []int64{100, 200}, EventFor(domain.NotifPaymentReceived, b, "", at).Recipients())

	assert.Equal(t, int64(105000), EventFor(domain.NotifRefundCompleted, b, "", at).Amount)
	assert.Equal(t, int64(94500), EventFor(domain.NotifBookingCompleted, b, "", at).Amount)
	assert.Zero(t, EventFor(domain.NotifBookingApproved, b, "", at).Amount)
}

func TestMarkAsRead(t *testing.T) {
	inbox := newInbox(t)
	svc := NewService(inbox, nil, nil, nil)
	ctx := context.Background()

	svc.Emit(ctx, EventFor(domain.NotifBookingApproved, sampleBooking(), "", time.Now().UTC()))
	svc.Emit(ctx, EventFor(domain.NotifPaymentFailed, sampleBooking(), "card declined", time.Now().UTC()))

	list, unread, err := svc.List(ctx, 100, true, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), unread)

	require.NoError(t, svc.MarkAsRead(ctx, list[0].ID, 100))
	assert.ErrorIs(t, svc.MarkAsRead(ctx, list[1].ID, 200), ErrNotFound)

	n, err := svc.UnreadCount(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, svc.MarkAllAsRead(ctx, 100))
	n, err = svc.UnreadCount(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHub_PushesToConnectedUser(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(100, conn)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsOnline(100) }, time.Second, 10*time.Millisecond)

	inbox := newInbox(t)
	svc := NewService(inbox, hub, nil, nil)
	svc.Emit(context.Background(), EventFor(domain.NotifBookingApproved, sampleBooking(), "", time.Now().UTC()))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got domain.Notification
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, domain.NotifBookingApproved, got.Type)
	assert.Equal(t, int64(100), got.UserID)

	assert.False(t, hub.SendToUser(999, got))
}

func TestHub_DropsPeerThatStopsReading(t *testing.T) {
	hub := NewHub()
	hub.writeWait = 200 * time.Millisecond
	defer hub.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(100, conn)
	}))
	defer srv.Close()

	// the client never reads, so the socket buffers fill up
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.IsOnline(100) }, time.Second, 10*time.Millisecond)

	payload := map[string]string{"body": strings.Repeat("x", 1<<20)}
	done := make(chan bool, 1)
	go func() {
		for i := 0; i < 512; i++ {
			if !hub.SendToUser(100, payload) {
				done <- true
				return
			}
		}
		done <- false
	}()

	select {
	case dropped := <-done:
		assert.True(t, dropped)
	case <-time.After(10 * time.Second):
		t.Fatal("push to a stalled peer did not return")
	}
	assert.False(t, hub.IsOnline(100))
}
