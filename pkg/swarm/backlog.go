package swarm

import "sort"

// CoreKind classifies a replicated core for backlog ordering priority.
type CoreKind int

const (
	// KindView is the view-core: a reconnecting peer's chat history
	// should become consistent before anything else.
	KindView CoreKind = iota
	// KindWriter is one autobase writer-core.
	KindWriter
	// KindDrive is a drive chunk-core: large, least urgent.
	KindDrive
)

// CoreBacklog is one core's outstanding replication demand: the indices
// a peer has (via HAVE) that this node does not yet.
type CoreBacklog struct {
	Name    string
	Kind    CoreKind
	Missing []uint64 // ascending
}

// Plan orders a set of per-core backlogs into a single WANT sequence:
// view-core first, then writer-cores, then drive-cores, oldest index
// first within each core (spec.md §4.6 doesn't mandate an order; this
// is the supplemented scheduling policy from SPEC_FULL.md, grounded on
// the teacher's scheduler package — the same "given several consumers
// of one resource, decide a processing order" shape, here applied to
// block fetch order instead of container-to-node placement).
func Plan(cores []CoreBacklog) []WantItem {
	ordered := make([]CoreBacklog, len(cores))
	copy(ordered, cores)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Kind != ordered[j].Kind {
			return ordered[i].Kind < ordered[j].Kind
		}
		return ordered[i].Name < ordered[j].Name
	})

	var out []WantItem
	for _, c := range ordered {
		missing := append([]uint64(nil), c.Missing...)
		sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
		for _, idx := range missing {
			out = append(out, WantItem{Core: c.Name, Index: idx})
		}
	}
	return out
}

// WantItem is one scheduled WANT request.
type WantItem struct {
	Core  string
	Index uint64
}
