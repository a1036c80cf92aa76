package rga_test

import (
	"testing"

	"github.com/kevinxiao27/docweave/pkg/actor"
	"github.com/kevinxiao27/docweave/pkg/clock"
	"github.com/kevinxiao27/docweave/pkg/crdt/rga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainText(s *rga.Split) string {
	out := ""
	for _, n := range s.Nodes() {
		out += n.Value().(*rga.TextValue).String()
	}
	return out
}

// Scenario 1: text insert then split, using index-based positions via
// FindNodePos, matching the spec's index-space description directly.
func TestScenarioInsertThenSplitByIndex(t *testing.T) {
	a := actor.New()
	head := rga.ID{CreatedAt: clock.Initial}
	s := rga.NewSplit(head)

	t1 := clock.NewTicket(1, 0, a)
	_, _, _, err := s.Edit(rga.NodeRange{From: rga.NodePos{ID: head}, To: rga.NodePos{ID: head}}, t1, rga.NewTextValue("helloyorkie"), nil)
	require.NoError(t, err)
	require.Equal(t, "helloyorkie", plainText(s))

	from, err := s.FindNodePos(5)
	require.NoError(t, err)

	t2 := clock.NewTicket(2, 0, a)
	_, _, changes, err := s.Edit(rga.NodeRange{From: from, To: from}, t2, rga.NewTextValue("~"), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello~yorkie", plainText(s))
	require.Len(t, changes, 1)
	assert.Equal(t, 5, changes[0].From)

	live := s.Nodes()
	assert.Len(t, live, 3)
	assert.Equal(t, "hello", live[0].Value().(*rga.TextValue).String())
	assert.Equal(t, "~", live[1].Value().(*rga.TextValue).String())
	assert.Equal(t, "yorkie", live[2].Value().(*rga.TextValue).String())
}

// Scenario 2: concurrent insert tie-break by actor lexicographic order.
func TestScenarioConcurrentInsertTieBreak(t *testing.T) {
	run := func(applyAFirst bool) string {
		head := rga.ID{CreatedAt: clock.Initial}
		s := rga.NewSplit(head)

		aActor := actor.ID{}
		aActor[0] = 0x0a
		bActor := actor.ID{}
		bActor[0] = 0x0b

		tA := clock.NewTicket(1, 0, aActor)
		tB := clock.NewTicket(1, 0, bActor)

		applyA := func() {
			_, _, _, err := s.Edit(rga.NodeRange{From: rga.NodePos{ID: head}, To: rga.NodePos{ID: head}}, tA, rga.NewTextValue("A"), nil)
			require.NoError(t, err)
		}
		applyB := func() {
			_, _, _, err := s.Edit(rga.NodeRange{From: rga.NodePos{ID: head}, To: rga.NodePos{ID: head}}, tB, rga.NewTextValue("B"), nil)
			require.NoError(t, err)
		}

		if applyAFirst {
			applyA()
			applyB()
		} else {
			applyB()
			applyA()
		}
		return plainText(s)
	}

	orderAB := run(true)
	orderBA := run(false)
	assert.Equal(t, "BA", orderAB)
	assert.Equal(t, "BA", orderBA)
}

// Scenario 3: delete gated by a latestCreatedAtByActor map.
func TestScenarioGatedDelete(t *testing.T) {
	a := actor.ID{}
	a[0] = 1

	head := rga.ID{CreatedAt: clock.Initial}
	s := rga.NewSplit(head)

	var last rga.NodePos = rga.NodePos{ID: head}
	tickets := make([]clock.TimeTicket, 4)
	for i, ch := range []string{"a", "b", "c", "d"} {
		tk := clock.NewTicket(int64(i+1), 0, a)
		tickets[i] = tk
		pos, _, _, err := s.Edit(rga.NodeRange{From: last, To: last}, tk, rga.NewTextValue(ch), nil)
		require.NoError(t, err)
		last = pos
	}
	require.Equal(t, "abcd", plainText(s))

	from, err := s.FindNodePos(0)
	require.NoError(t, err)
	to, err := s.FindNodePos(4)
	require.NoError(t, err)

	b := actor.ID{}
	b[0] = 2
	remoteExec := clock.NewTicket(10, 0, b)
	latest := map[string]clock.TimeTicket{a.String(): tickets[1]} // b has only seen tickets[0], tickets[1]

	_, _, _, err = s.Edit(rga.NodeRange{From: from, To: to}, remoteExec, nil, latest)
	require.NoError(t, err)

	assert.Equal(t, "cd", plainText(s))
}

// Index-tree consistency property from spec §8.1.
func TestIndexTreeConsistency(t *testing.T) {
	a := actor.New()
	head := rga.ID{CreatedAt: clock.Initial}
	s := rga.NewSplit(head)

	var last rga.NodePos = rga.NodePos{ID: head}
	for i, ch := range []string{"a", "b", "c", "d", "e"} {
		tk := clock.NewTicket(int64(i+1), 0, a)
		pos, _, _, err := s.Edit(rga.NodeRange{From: last, To: last}, tk, rga.NewTextValue(ch), nil)
		require.NoError(t, err)
		last = pos
	}

	sumWeights := 0
	for _, n := range s.Nodes() {
		sumWeights += n.Weight()
	}
	assert.Equal(t, s.Len(), sumWeights)

	for i := 0; i <= s.Len(); i++ {
		pos, err := s.FindNodePos(i)
		require.NoError(t, err)
		from, to, err := s.FindIndexesFromRange(rga.NodeRange{From: pos, To: pos})
		require.NoError(t, err)
		assert.Equal(t, i, from)
		assert.Equal(t, i, to)
	}
}

func TestPurgeRemovedNodesBefore(t *testing.T) {
	a := actor.New()
	head := rga.ID{CreatedAt: clock.Initial}
	s := rga.NewSplit(head)

	t1 := clock.NewTicket(1, 0, a)
	_, _, _, err := s.Edit(rga.NodeRange{From: rga.NodePos{ID: head}, To: rga.NodePos{ID: head}}, t1, rga.NewTextValue("hello"), nil)
	require.NoError(t, err)

	from, _ := s.FindNodePos(0)
	to, _ := s.FindNodePos(5)
	removeAt := clock.NewTicket(2, 0, a)
	_, _, _, err = s.Edit(rga.NodeRange{From: from, To: to}, removeAt, nil, nil)
	require.NoError(t, err)
	assert.True(t, s.HasRemovedNodes())

	purged := s.PurgeRemovedNodesBefore(clock.NewTicket(3, 0, a))
	assert.Equal(t, 1, purged)
	assert.False(t, s.HasRemovedNodes())
}
