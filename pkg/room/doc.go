// Package room is the engine's one public surface (spec.md §6): a Room
// owns its view, autobase, local writer-core, drive, swarm and pairing
// member, and exposes the operations a UI drives directly — create,
// pair, send/delete/query messages, manage writers, and the file
// operations a drive backs.
//
// Room plays the same "owns everything, NewX(cfg) wires it all
// together" role the teacher's Manager plays for a cluster node, scaled
// down to one room's worth of state instead of a whole cluster's.
package room
