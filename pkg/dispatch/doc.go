/*
Package dispatch implements the Room Engine's typed-command wire layer
(spec.md §4.4): every mutation is a 1-byte command tag followed by a
schema-encoded payload, and appending such a record to a writer-core is the
only way to change durable state.

# Wire format

	[tag:u8][version:u8][msgpack-encoded payload]

The tag is a stable, versioned enumeration (see Tag). The payload is
encoded with github.com/hashicorp/go-msgpack/v2 — the same codec the
teacher's Raft transport (hashicorp/raft, an indirect dependency pulled in
by go-msgpack) uses for its own RPC structures — rather than a hand-rolled
varint field format: msgpack's map-of-field-name encoding gives schema
evolution (new fields default to their zero value on an older decoder) for
free, which is exactly the guarantee spec.md §4.4 asks for ("schema
evolution appends fields with a default value; never renumbers tags").

# Router

A Router maps a Tag to a Handler. Handlers are registered by the autobase
package (which owns the view the handlers mutate); dispatch itself knows
nothing about views or rooms, only about tags and bytes, so it has no
import-cycle pressure against the packages that use it.
*/
package dispatch
