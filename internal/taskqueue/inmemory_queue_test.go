package taskqueue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/tickflow/pkg/api"
)

func TestInMemoryQueue_DrainOrder(t *testing.T) {
	q := NewInMemoryQueue()

	q.Enqueue(Task{InstanceID: "1"})
	q.Enqueue(Task{InstanceID: "2"})
	q.Enqueue(Task{InstanceID: "3"})

	require.Equal(t, 3, q.Len())

	got := q.Drain()
	require.Len(t, got, 3)
	require.Equal(t, "1", got[0].InstanceID)
	require.Equal(t, "2", got[1].InstanceID)
	require.Equal(t, "3", got[2].InstanceID)

	require.Equal(t, 0, q.Len())
	require.Empty(t, q.Drain())
}

func TestInMemoryQueue_RequeueGoesToFront(t *testing.T) {
	q := NewInMemoryQueue()

	q.Enqueue(Task{InstanceID: "a"})
	q.Enqueue(Task{InstanceID: "b"})
	drained := q.Drain()

	// A task arriving after the drain must stay behind the requeued ones.
	q.Enqueue(Task{InstanceID: "c"})
	q.Requeue(drained...)

	got := q.Drain()
	require.Len(t, got, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{got[0].InstanceID, got[1].InstanceID, got[2].InstanceID})
}

func TestSet_OneQueuePerDomain(t *testing.T) {
	s := NewSet()

	for _, d := range api.Domains {
		require.NotNil(t, s.For(d), "missing queue for %s", d)
	}

	s.For(api.DomainIsolated).Enqueue(Task{InstanceID: "x"})
	s.For(api.DomainOffThread).Enqueue(Task{InstanceID: "y"})
	s.For(api.DomainOffThread).Enqueue(Task{InstanceID: "z"})

	depths := s.Depths()
	require.Equal(t, 0, depths[api.DomainMain])
	require.Equal(t, 1, depths[api.DomainIsolated])
	require.Equal(t, 2, depths[api.DomainOffThread])
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "run", PhaseRun.String())
	require.Equal(t, "setup", PhaseSetup.String())
	require.Equal(t, "poll", PhasePoll.String())
}
