package replica

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBecomeFollowerClearsVoteOnTermIncrease(t *testing.T) {
	r, _ := newTestReplica("1", []string{"2"})
	r.votedFor = "2"
	r.currentTerm = 1

	r.becomeFollower(2, "3")

	require.Equal(t, "", r.votedFor)
	require.Equal(t, uint64(2), r.currentTerm)
	require.Equal(t, "3", r.currentLeader)
}

func TestBecomeFollowerKeepsVoteWhenTermUnchanged(t *testing.T) {
	r, _ := newTestReplica("1", []string{"2"})
	r.votedFor = "2"
	r.currentTerm = 3

	r.becomeFollower(3, "")

	require.Equal(t, "2", r.votedFor)
	require.Equal(t, uint64(3), r.currentTerm)
}

func TestMajorityIsStrictOverPeersPlusSelf(t *testing.T) {
	r, _ := newTestReplica("1", []string{"2", "3", "4", "5"})
	require.Equal(t, 3, r.majority())

	r2, _ := newTestReplica("1", []string{"2"})
	require.Equal(t, 2, r2.majority())
}

func TestBecomeLeaderResetsNextIndexToCommitPlusOne(t *testing.T) {
	r, _ := newTestReplica("1", []string{"2", "3"})
	r.commitIndex = 4
	r.becomeCandidate()
	r.becomeLeader()

	require.Equal(t, 5, r.leader.nextIndex["2"])
	require.Equal(t, 0, r.leader.matchIndex["2"])
}
