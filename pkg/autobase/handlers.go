package autobase

import (
	"fmt"

	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/view"
)

// MetadataKeyRoomID is the scalar metadata key apply uses to remember
// which room descriptor a bare send-message/delete-message record should
// update the message count on — the record itself carries no room id,
// since one view instance always backs exactly one room. Exported so
// pkg/room can resolve "the" room descriptor without needing its id
// passed in out of band.
const MetadataKeyRoomID = "room-id"

// RegisterHandlers installs the apply handlers for every dispatch tag
// (spec.md §4.4 table) on router. These are the sole functions permitted
// to mutate the view; everything else reaches it through Base.Linearise.
func RegisterHandlers(router *dispatch.Router) {
	router.Register(dispatch.TagAddWriter, handleAddWriter)
	router.Register(dispatch.TagRemoveWriter, handleRemoveWriter)
	router.Register(dispatch.TagAddInvite, handleAddInvite)
	router.Register(dispatch.TagSendMessage, handleSendMessage)
	router.Register(dispatch.TagDeleteMessage, handleDeleteMessage)
	router.Register(dispatch.TagSetMetadata, handleSetMetadata)
	router.Register(dispatch.TagSetDriveKey, handleSetDriveKey)
	router.Register(dispatch.TagUpdateDriveMetadata, handleUpdateDriveMetadata)
}

func batchFrom(ctx dispatch.Context) (*view.Batch, error) {
	b, ok := ctx.Batch.(*view.Batch)
	if !ok {
		return nil, rerr.Fatal("autobase.batchFrom", fmt.Errorf("dispatch context carries no view batch"))
	}
	return b, nil
}

func handleAddWriter(ctx dispatch.Context, payload []byte) error {
	var p dispatch.AddWriterPayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	return b.PutWriter(p.Key)
}

func handleRemoveWriter(ctx dispatch.Context, payload []byte) error {
	var p dispatch.RemoveWriterPayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	return b.RemoveWriter(p.Key)
}

func handleAddInvite(ctx dispatch.Context, payload []byte) error {
	var p dispatch.AddInvitePayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	return b.PutInvite(view.Invite{
		ID:        p.ID,
		Invite:    p.Invite,
		PublicKey: p.PublicKey,
		Expires:   p.Expires,
	})
}

func handleSendMessage(ctx dispatch.Context, payload []byte) error {
	var p dispatch.SendMessagePayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	if err := b.PutMessage(view.Message{
		ID:        p.ID,
		Content:   p.Content,
		Sender:    p.Sender,
		PublicKey: p.PublicKey,
		Timestamp: p.Timestamp,
		System:    p.System,
	}); err != nil {
		return err
	}
	return bumpMessageCount(b, 1)
}

func handleDeleteMessage(ctx dispatch.Context, payload []byte) error {
	var p dispatch.DeleteMessagePayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	if err := b.DeleteMessage(p.ID); err != nil {
		return err
	}
	return bumpMessageCount(b, -1)
}

// bumpMessageCount folds the room's message count into apply itself
// (spec.md §9 Redesign Flags): the source mutates messageCount
// out-of-band after sendMessage, which can under-count when two writers
// send concurrently. Doing it here, inside the same view batch as the
// message write, makes the count a pure function of the linearised log.
func bumpMessageCount(b *view.Batch, delta int64) error {
	roomID, ok := b.GetMetadata(MetadataKeyRoomID)
	if !ok {
		return nil // no room descriptor yet; nothing to update
	}
	room, ok, err := b.GetRoom(roomID)
	if err != nil || !ok {
		return err
	}
	if delta < 0 && room.MessageCount == 0 {
		return nil
	}
	room.MessageCount = uint64(int64(room.MessageCount) + delta)
	return b.PutRoom(room)
}

func handleSetMetadata(ctx dispatch.Context, payload []byte) error {
	var p dispatch.SetMetadataPayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	existing, ok, err := b.GetRoom(p.ID)
	if err != nil {
		return err
	}
	messageCount := p.MessageCount
	if ok {
		messageCount = existing.MessageCount // set-metadata never overwrites the live count
	}
	if err := b.PutRoom(view.Room{
		ID:           p.ID,
		Name:         p.Name,
		CreatedAt:    p.CreatedAt,
		MessageCount: messageCount,
		DriveKey:     p.DriveKey,
	}); err != nil {
		return err
	}
	return b.PutMetadata(MetadataKeyRoomID, p.ID)
}

func handleSetDriveKey(ctx dispatch.Context, payload []byte) error {
	var p dispatch.SetDriveKeyPayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	roomID, ok := b.GetMetadata(MetadataKeyRoomID)
	if !ok {
		return rerr.Invalid("autobase.handleSetDriveKey", fmt.Errorf("no room descriptor to bind a drive to"))
	}
	room, ok, err := b.GetRoom(roomID)
	if err != nil {
		return err
	}
	if !ok {
		return rerr.Invalid("autobase.handleSetDriveKey", fmt.Errorf("unknown room %q", roomID))
	}
	if len(room.DriveKey) != 0 {
		return rerr.Invalid("autobase.handleSetDriveKey", fmt.Errorf("room %q already has a drive bound", roomID))
	}
	room.DriveKey = p.Key
	return b.PutRoom(room)
}

func handleUpdateDriveMetadata(ctx dispatch.Context, payload []byte) error {
	var p dispatch.UpdateDriveMetadataPayload
	if err := dispatch.DecodePayload(payload, &p); err != nil {
		return err
	}
	b, err := batchFrom(ctx)
	if err != nil {
		return err
	}
	return b.PutDriveMetadata(view.DriveMetadata{
		ID:        p.ID,
		Path:      p.Path,
		BlobID:    p.BlobID,
		Size:      p.Size,
		CreatedAt: p.CreatedAt,
		Deleted:   p.Deleted,
	})
}
