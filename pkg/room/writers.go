package room

import (
	"crypto/ed25519"

	"github.com/latticechat/roomengine/pkg/dispatch"
	"github.com/latticechat/roomengine/pkg/view"
)

// AddWriter admits key as a writer directly, without going through an
// invite — used by tests and by any caller that already trusts key out
// of band (spec.md §4.4 add-writer).
func (r *Room) AddWriter(key ed25519.PublicKey) error {
	_, err := r.base.Append(dispatch.NameAddWriter, dispatch.AddWriterPayload{Key: key})
	return err
}

// RemoveWriter revokes key prospectively: records already linearised
// from it remain part of the view (spec.md §9 Open Questions).
func (r *Room) RemoveWriter(key ed25519.PublicKey) error {
	_, err := r.base.Append(dispatch.NameRemoveWriter, dispatch.RemoveWriterPayload{Key: key})
	return err
}

// GetWriters returns every writer record, including removed ones.
func (r *Room) GetWriters() ([]view.Writer, error) {
	return r.v.GetWriters()
}
