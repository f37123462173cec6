/*
Package events adapts the cluster-wide publish/subscribe broker from the
original manager package into the room façade's narrower event surface
(spec.md §6 and §9's propagation policy): a handful of named event types
instead of a cluster's worth of resource lifecycle events, non-blocking
delivery, and an explicit Close for room teardown.

The Subscriber-channel-per-listener and RWMutex-guarded subscriber set
are otherwise unchanged from that broker.
*/
package events
