package ws

import (
	"balancestudio/internal/domain"
)

// Events publishes refresh hints to connected clients. Payloads carry the
// topic and event name plus optional extra fields; the web client re-fetches
// the matching list when one arrives.
type Events struct {
	hub *Hub
}

func NewEvents(hub *Hub) *Events {
	return &Events{hub: hub}
}

func (e *Events) Hub() *Hub {
	return e.hub
}

func (e *Events) publish(userID uint, topic, event string, extra map[string]interface{}) {
	if e == nil || e.hub == nil {
		return
	}
	payload := map[string]interface{}{"topic": topic, "event": event}
	for k, v := range extra {
		payload[k] = v
	}
	e.hub.SendToUser(userID, payload)
}

// NotifyNotificationNew announces a freshly created notification together
// with the user's unread count.
func (e *Events) NotifyNotificationNew(userID uint, unread int64) {
	e.publish(userID, domain.TopicNotifications, "new", map[string]interface{}{"unread": unread})
}

// NotifyNotificationRefresh is pushed after read/delete mutations so badge
// counts stay accurate without a re-fetch.
func (e *Events) NotifyNotificationRefresh(userID uint, unread int64) {
	e.publish(userID, domain.TopicNotifications, "refresh", map[string]interface{}{"unread": unread})
}

func (e *Events) NotifyInviteRefresh(userID uint) {
	e.publish(userID, domain.TopicInvites, "refresh", nil)
}

func (e *Events) NotifyFriendsRefresh(userID uint) {
	e.publish(userID, domain.TopicFriends, "refresh", nil)
}

func (e *Events) NotifyActivityRefresh(userID uint) {
	e.publish(userID, domain.TopicActivity, "refresh", nil)
}
