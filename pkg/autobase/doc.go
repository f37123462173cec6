/*
Package autobase implements the Room Engine's multi-writer log
linearisation and apply contract (spec.md §4.2). Given a set of
single-writer block stores (pkg/blockstore), autobase combines their
independently-appended records into one deterministic total order and
feeds each newly-ready batch to an apply function that is the sole
mutator of the view (pkg/view).

# Causal metadata

Every record appended through Base.Append is wrapped in an envelope
that carries, alongside the dispatch payload, a clock: a snapshot of how
many records this writer had observed from every other known writer-core
at the moment of appending (see envelope.go). A record is ready to
linearise once, for every writer named in its clock, at least that many
of that writer's records have already been linearised locally.

This is the same idea as the teacher's FSM (pkg/manager/fsm.go): a single
switch-shaped Apply routine mutating a shared store under a lock. The
difference here is that there is no leader-voted log to apply in
arrival order — the order itself must be *computed* from causal
precedence, with writer-key lexicographic order breaking ties between
records that are mutually unordered (spec.md §4.2). Once computed, the
apply step is structurally identical to the teacher's: decode, route on
a type tag, mutate storage, continue on a handler error rather than
aborting the batch.

# Pending writers

A writer's records cannot be linearised until the Base has locally
replicated enough of its writer-core to see them, and cannot take effect
until its own add-writer record has itself been linearised (spec.md §8
property 5). Rather than a separate queue, Base re-runs the linearisation
step whenever a block store reports new blocks (via
blockstore.Store.OnBlock), so a writer that was blocked on a causal
dependency or on replication catching up is picked up automatically on
the next relevant arrival — the reconciliation the teacher's
pkg/reconciler performs on a fixed timer, here event-driven instead.
*/
package autobase
