package room

import (
	"github.com/latticechat/roomengine/pkg/events"
	"github.com/latticechat/roomengine/pkg/view"
)

// UploadFile stores data at path through the room's drive (spec.md §4.5
// put). Blob bytes stay local to this process; only the path metadata
// record replicates to other writers (see the pkg/room simplifications
// list in DESIGN.md).
func (r *Room) UploadFile(path string, data []byte) (view.DriveMetadata, error) {
	return r.drive.Put(path, data)
}

// DownloadFile returns the full content at path.
func (r *Room) DownloadFile(path string) ([]byte, error) {
	return r.drive.Get(path)
}

// ReadFileRange returns data[start:end] at path (spec.md §4.5
// createReadStream).
func (r *Room) ReadFileRange(path string, start, end int64) ([]byte, error) {
	return r.drive.CreateReadStream(path, start, end)
}

// DeleteFile removes the entry at path; the underlying blob bytes remain
// stored, dedup-friendly.
func (r *Room) DeleteFile(path string) error {
	return r.drive.Del(path)
}

// CreateDirectory makes dir exist even with nothing in it yet, by
// writing the drive's .keep sentinel convention.
func (r *Room) CreateDirectory(dir string) error {
	_, err := r.drive.Put(dir+"/.keep", nil)
	return err
}

// DeleteDirectory removes every entry under dir.
func (r *Room) DeleteDirectory(dir string) error {
	entries, err := r.drive.List(dir, true, 0)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := r.drive.Del(e.Path); err != nil {
			return err
		}
	}
	return nil
}

// GetFiles lists entries under dir (spec.md §4.5 list).
func (r *Room) GetFiles(dir string, recursive bool, limit int) ([]view.DriveMetadata, error) {
	return r.drive.List(dir, recursive, limit)
}

// WatchFiles validates dir and returns a subscription on the room's event
// broker. It is not filtered by dir: it receives a file-change event for
// every drive mutation anywhere in the drive, along with every other
// room event.
func (r *Room) WatchFiles(dir string) (events.Subscriber, error) {
	return r.drive.Watch(dir)
}
