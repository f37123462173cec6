/*
Package metrics exposes the room engine's Prometheus metrics: append
outcomes, linearisation lag, replication backlog, writer counts, and
invites issued. It mirrors the teacher's metrics package — a package of
prometheus.Collector vars registered in init, a Timer helper, and a
periodic Collector sampling a live source — generalised from cluster
resource gauges to room-engine internals (spec.md's Non-goals exclude no
observability; this is carried as an ambient concern).

Source decouples Collector from pkg/room the same way pkg/dispatch
decouples from pkg/view: pkg/room implements Source and cmd/roomctl
creates the Collector instance, so pkg/metrics never imports pkg/room.
*/
package metrics
