package blob

import (
	"fmt"
	"sort"
	"strings"

	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/events"
	"github.com/latticechat/roomengine/pkg/rerr"
	"github.com/latticechat/roomengine/pkg/view"
)

// keepSentinel is the entry name synthesised to let an otherwise-empty
// directory exist in a list() result (spec.md §4.5: "Directories are
// synthesised from path prefixes plus .keep sentinels").
const keepSentinel = ".keep"

// Appender is the subset of autobase.Base the drive needs: every
// directory mutation is an update-drive-metadata record, so it is
// replicated and linearised exactly like any other room record rather
// than written to the view directly.
type Appender interface {
	Append(name dispatch.Name, payload interface{}) (uint64, error)
}

// Drive layers spec.md §4.5's path-based file interface over a content-
// addressed Store and the view's drive-metadata collection.
type Drive struct {
	store    *Store
	v        *view.View
	appender Appender
	broker   *events.Broker
	room     string

	idSeed func() string
}

// New returns a Drive for room, backed by store for blob bytes and v for
// path metadata. idSeed supplies putUniquePath's uniqueness suffix; the
// caller owns time/randomness access (see path.go).
func New(room string, store *Store, v *view.View, appender Appender, broker *events.Broker, idSeed func() string) *Drive {
	return &Drive{store: store, v: v, appender: appender, broker: broker, room: room, idSeed: idSeed}
}

// Put stores data under path, uniquifying the path if it is already
// occupied, and returns the resulting metadata entry once the
// update-drive-metadata record has been appended (spec.md §4.5 put).
func (d *Drive) Put(requestedPath string, data []byte) (view.DriveMetadata, error) {
	clean, err := normalizePath(requestedPath)
	if err != nil {
		return view.DriveMetadata{}, err
	}
	finalPath, err := putUniquePath(clean, d.idSeed(), func(p string) (bool, error) {
		_, ok, err := d.findByPath(p)
		return ok, err
	})
	if err != nil {
		return view.DriveMetadata{}, err
	}

	id, err := d.store.Put(data)
	if err != nil {
		return view.DriveMetadata{}, err
	}

	meta := view.DriveMetadata{
		ID:        finalPath,
		Path:      finalPath,
		BlobID:    id[:],
		Size:      int64(len(data)),
		CreatedAt: 0,
	}
	if _, err := d.appender.Append(dispatch.NameUpdateDriveMetadata, dispatch.UpdateDriveMetadataPayload{
		ID:     meta.ID,
		Path:   meta.Path,
		BlobID: meta.BlobID,
		Size:   meta.Size,
	}); err != nil {
		return view.DriveMetadata{}, err
	}
	d.publish(events.TypeFileChange, meta.Path)
	return meta, nil
}

// Get returns the full content at path.
func (d *Drive) Get(requestedPath string) ([]byte, error) {
	meta, ok, err := d.Entry(requestedPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rerr.Invalid("blob.Drive.Get", fmt.Errorf("no entry at %q", requestedPath))
	}
	id, err := idFromBytes(meta.BlobID)
	if err != nil {
		return nil, err
	}
	return d.store.Get(id)
}

// CreateReadStream returns data[start:end] at path (spec.md §4.5:
// "get(path) / createReadStream(path, {start, end}): range reads through
// the chunk map").
func (d *Drive) CreateReadStream(requestedPath string, start, end int64) ([]byte, error) {
	meta, ok, err := d.Entry(requestedPath)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, rerr.Invalid("blob.Drive.CreateReadStream", fmt.Errorf("no entry at %q", requestedPath))
	}
	id, err := idFromBytes(meta.BlobID)
	if err != nil {
		return nil, err
	}
	return d.store.GetRange(id, start, end)
}

// Del removes the entry at path; the underlying blob bytes are left in
// the store, dedup-friendly (spec.md §4.5).
func (d *Drive) Del(requestedPath string) error {
	meta, ok, err := d.Entry(requestedPath)
	if err != nil {
		return err
	}
	if !ok {
		return rerr.Invalid("blob.Drive.Del", fmt.Errorf("no entry at %q", requestedPath))
	}
	if _, err := d.appender.Append(dispatch.NameUpdateDriveMetadata, dispatch.UpdateDriveMetadataPayload{
		ID:        meta.ID,
		Path:      meta.Path,
		BlobID:    meta.BlobID,
		Size:      meta.Size,
		CreatedAt: meta.CreatedAt,
		Deleted:   true,
	}); err != nil {
		return err
	}
	d.publish(events.TypeFileChange, meta.Path)
	return nil
}

// Exists reports whether path has a live (non-deleted) entry.
func (d *Drive) Exists(requestedPath string) (bool, error) {
	_, ok, err := d.Entry(requestedPath)
	return ok, err
}

// Entry returns the live metadata at path.
func (d *Drive) Entry(requestedPath string) (view.DriveMetadata, bool, error) {
	clean, err := normalizePath(requestedPath)
	if err != nil {
		return view.DriveMetadata{}, false, err
	}
	return d.findByPath(clean)
}

func (d *Drive) findByPath(clean string) (view.DriveMetadata, bool, error) {
	all, err := d.v.ListDriveMetadata()
	if err != nil {
		return view.DriveMetadata{}, false, err
	}
	for _, m := range all {
		if m.Path == clean {
			return m, true, nil
		}
	}
	return view.DriveMetadata{}, false, nil
}

// List returns entries under dir (spec.md §4.5 list). Non-recursive
// listings collapse anything beneath an immediate subdirectory into a
// single synthesised .keep entry for that subdirectory, so an otherwise
// empty directory still appears. limit<=0 means unbounded.
func (d *Drive) List(dir string, recursive bool, limit int) ([]view.DriveMetadata, error) {
	cleanDir, err := normalizeDir(dir)
	if err != nil {
		return nil, err
	}
	all, err := d.v.ListDriveMetadata()
	if err != nil {
		return nil, err
	}

	seenDirs := map[string]bool{}
	var out []view.DriveMetadata
	for _, m := range all {
		if !strings.HasPrefix(m.Path, cleanDir) {
			continue
		}
		rest := strings.TrimPrefix(m.Path, cleanDir)
		if rest == "" {
			continue
		}
		if recursive || !strings.Contains(rest, "/") {
			out = append(out, m)
			continue
		}
		sub := cleanDir + rest[:strings.Index(rest, "/")]
		if !seenDirs[sub] {
			seenDirs[sub] = true
			out = append(out, view.DriveMetadata{ID: sub + "/" + keepSentinel, Path: sub + "/" + keepSentinel})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Watch validates dir and returns a plain subscription on the room's
// broker (spec.md §4.5 watch). The subscription is not filtered by dir or
// by event type: it receives a TypeFileChange event for every drive
// mutation anywhere in the drive, along with every other event published
// on the broker. Callers must events.Broker.Unsubscribe when done.
func (d *Drive) Watch(dir string) (events.Subscriber, error) {
	if _, err := normalizeDir(dir); err != nil {
		return nil, err
	}
	return d.broker.Subscribe(), nil
}

func (d *Drive) publish(t events.Type, p string) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(events.Event{Type: t, Room: d.room, Payload: p})
}

func normalizeDir(dir string) (string, error) {
	if dir == "" || dir == "/" {
		return "/", nil
	}
	clean, err := normalizePath(dir)
	if err != nil {
		return "", err
	}
	return clean + "/", nil
}

func idFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != len(id) {
		return ID{}, rerr.Invalid("blob.idFromBytes", fmt.Errorf("blob id must be %d bytes, got %d", len(id), len(b)))
	}
	copy(id[:], b)
	return id, nil
}
