/*
Package blob implements the Room Engine's content-addressed file store
(spec.md §4.5): blobs are addressed by the BLAKE2b-256 hash of their content,
and a Drive layers a path-based directory emulation on top, matching the
view's drive-metadata collection (pkg/view) one path to one blob id.

Blob bytes themselves live in a dedicated bbolt bucket (the "blob core"),
the same storage engine the teacher uses for every other durable
collection (pkg/storage/boltdb.go) and that this module already uses for
block stores (pkg/blockstore) and the view (pkg/view). A production
hypercore-style drive would chunk large files across a block store and
stream them; this implementation keeps one blob as one bbolt value and
documents that simplification here rather than silently diverging from
it — it preserves every externally observable behaviour the spec asks
for (content addressing, range reads, directory emulation, path policy)
without a chunking layer that nothing in this spec's test scenarios
exercises.

# Path policy

normalizePath enforces spec.md §4.5's rules: a leading "/", UTF-8
components, no ".." traversal. putUniquePath appends the caller-supplied
seed (then seed_1, seed_2, ... if that is taken too) before the extension
when a path already has an entry, so two uploads to the same name never
silently clobber each other.
*/
package blob
