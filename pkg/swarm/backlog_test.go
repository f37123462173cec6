package swarm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanOrdersViewBeforeWritersBeforeDrive(t *testing.T) {
	plan := Plan([]CoreBacklog{
		{Name: "drive-1", Kind: KindDrive, Missing: []uint64{0, 1}},
		{Name: "writer-b", Kind: KindWriter, Missing: []uint64{5}},
		{Name: "view", Kind: KindView, Missing: []uint64{2, 1, 0}},
		{Name: "writer-a", Kind: KindWriter, Missing: []uint64{3}},
	})

	require.Len(t, plan, 6)

	assert.Equal(t, "view", plan[0].Core)
	assert.Equal(t, uint64(0), plan[0].Index)
	assert.Equal(t, "view", plan[1].Core)
	assert.Equal(t, uint64(1), plan[1].Index)
	assert.Equal(t, "view", plan[2].Core)
	assert.Equal(t, uint64(2), plan[2].Index)

	assert.Equal(t, "writer-a", plan[3].Core)
	assert.Equal(t, "writer-b", plan[4].Core)

	assert.Equal(t, "drive-1", plan[5].Core)
}

func TestPlanHandlesEmptyInput(t *testing.T) {
	assert.Empty(t, Plan(nil))
}
