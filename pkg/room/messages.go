package room

import (
	"time"

	"github.com/google/uuid"

	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/events"
	"github.com/latticechat/roomengine/pkg/view"
)

// SendMessage appends a chat message, stamping it with the local clock
// (apply itself never reads the clock, spec.md §4.2) and returns the
// linearised message once it is visible in the view.
func (r *Room) SendMessage(content string) (view.Message, error) {
	id := uuid.New().String()
	ts := time.Now().UnixMilli()

	if _, err := r.base.Append(dispatch.NameSendMessage, dispatch.SendMessagePayload{
		ID:        id,
		Content:   content,
		Sender:    r.identity.Username(),
		PublicKey: r.identity.PublicKey(),
		Timestamp: ts,
	}); err != nil {
		return view.Message{}, err
	}

	msg, _, err := r.v.GetMessage(id)
	if err != nil {
		return view.Message{}, err
	}
	if r.broker != nil {
		room, _ := r.ID()
		r.broker.Publish(events.Event{Type: events.TypeNewMessage, Room: room, Payload: msg})
	}
	return msg, nil
}

// DeleteMessage tombstones id (spec.md §3: "deletion inserts a
// tombstone").
func (r *Room) DeleteMessage(id string) error {
	_, err := r.base.Append(dispatch.NameDeleteMessage, dispatch.DeleteMessagePayload{ID: id})
	return err
}

// GetMessages answers spec.md §4.3's getMessages query.
func (r *Room) GetMessages(q view.MessageQuery) ([]view.Message, error) {
	return r.v.GetMessages(q)
}

// GetMessageCount returns this room's authoritative message count.
func (r *Room) GetMessageCount() (uint64, error) {
	id, err := r.ID()
	if err != nil {
		return 0, err
	}
	return r.v.GetMessageCount(id)
}
