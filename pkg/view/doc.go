/*
Package view implements the Room Engine's schema-typed view (spec.md
§4.3): a deterministic fold over the linearised log, queryable by the room
façade and mutated by the autobase apply function. The one exception is
the invite collection, where View.ConsumeInvite and View.DeleteInvite
write directly, outside apply, on the inviter's own view.

Six collections live in one bbolt database, one bucket per collection:
writer, invite, rooms, messages, metadata, drive-metadata. A seventh,
internal bucket maintains the secondary timestamp index over messages
(spec.md §4.3: "apply also writes (timestamp, id) → id into an index
collection; deletions mirror").

# Transaction discipline

All writes go through a Batch, which wraps one bbolt write transaction
(spec.md §4.2: "it MUST write through the provided view handle, which
wraps an atomic transaction flushed at batch end"). Reads are exposed
directly on View as synchronous point reads or bounded scans, each taking
its own bbolt read transaction — safe because, apart from those two
invite writes, the view is mutated only by the single-task apply loop (spec.md §5: "no explicit user-level locks are
needed because mutation points are funneled through apply").

This mirrors the teacher's BoltStore (pkg/storage/boltdb.go): one bucket
per record kind, JSON-marshaled values, CRUD plus linear-scan secondary
lookups. The difference here is the explicit batch/transaction handle
apply needs, and the maintained timestamp index getMessages relies on.
*/
package view
