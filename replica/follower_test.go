package replica

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sebytremblay/raft-protocol/transport"
)

func TestHandleAppendEntriesRejectsStaleTerm(t *testing.T) {
	r, tr := newTestReplica("2", []string{"1"})
	r.currentTerm = 5

	r.handleAppendEntries(transport.Message{Src: "1", Term: 3})

	fails := tr.messagesOfType(transport.TypeFail)
	require.Len(t, fails, 1)
	require.Equal(t, Follower, r.role)
	require.Equal(t, uint64(5), r.currentTerm) // unchanged, stale sender ignored
}

func TestHandleAppendEntriesAdoptsLeaderAndAppends(t *testing.T) {
	r, tr := newTestReplica("2", []string{"1"})

	r.handleAppendEntries(transport.Message{
		Src: "1", Term: 1, PrevLogIndex: 0, PrevLogTerm: 0,
		Entries:      []transport.Entry{{Term: 1, Command: transport.CommandPut, Key: "x", Value: "1"}},
		LeaderCommit: 1,
	})

	require.Equal(t, "1", r.currentLeader)
	require.Equal(t, 1, r.log.LastIndex())
	require.Equal(t, 1, r.commitIndex)

	oks := tr.messagesOfType(transport.TypeOK)
	require.Len(t, oks, 1)
}

func TestHandleAppendEntriesRejectsLogMismatchWithConflictHint(t *testing.T) {
	r, tr := newTestReplica("2", []string{"1"})
	r.log.Append(transport.Entry{Term: 1})

	r.handleAppendEntries(transport.Message{Src: "1", Term: 2, PrevLogIndex: 1, PrevLogTerm: 2})

	fails := tr.messagesOfType(transport.TypeFail)
	require.Len(t, fails, 1)
	require.Equal(t, uint64(1), fails[0].FirstIndex)
}

func TestHandleAppendEntriesTruncatesConflictingSuffix(t *testing.T) {
	r, _ := newTestReplica("2", []string{"1"})
	r.log.Append(transport.Entry{Term: 1})
	r.log.Append(transport.Entry{Term: 1}) // index 2, will conflict

	r.handleAppendEntries(transport.Message{
		Src: "1", Term: 2, PrevLogIndex: 1, PrevLogTerm: 1,
		Entries: []transport.Entry{{Term: 2, Key: "replacement"}},
	})

	e, ok := r.log.Get(2)
	require.True(t, ok)
	require.Equal(t, "replacement", e.Key)
	require.Equal(t, uint64(2), e.Term)
}

func TestHandleAppendEntriesHeartbeatDoesNotRegressAlreadyAppendedEntries(t *testing.T) {
	r, _ := newTestReplica("2", []string{"1"})
	r.log.Append(transport.Entry{Term: 1, Command: transport.CommandPut, Key: "x", Value: "1"})
	r.commitIndex = 1
	r.lastApplied = 1

	// A heartbeat racing ahead of the leader's next_index update for this
	// peer carries a stale prev_log_index; it must not discard what a prior
	// AppendEntries already appended.
	r.handleAppendEntries(transport.Message{Src: "1", Term: 1, PrevLogIndex: 0, PrevLogTerm: 0})

	require.Equal(t, 1, r.log.LastIndex())
	e, ok := r.log.Get(1)
	require.True(t, ok)
	require.Equal(t, "x", e.Key)
}

func TestHandleAppendEntriesForgetsCommittedMIDOnTruncation(t *testing.T) {
	r, _ := newTestReplica("2", []string{"1"})
	r.log.Append(transport.Entry{Term: 1, Command: transport.CommandPut, Src: "client", MID: "stale", Key: "x", Value: "1"})
	r.committedMIDs["stale"] = 1
	r.commitIndex = 1
	r.lastApplied = 1

	r.handleAppendEntries(transport.Message{
		Src: "1", Term: 2, PrevLogIndex: 0, PrevLogTerm: 0,
		Entries: []transport.Entry{{Term: 2, Command: transport.CommandPut, Src: "client", MID: "fresh", Key: "y", Value: "2"}},
	})

	_, stillKnown := r.committedMIDs["stale"]
	require.False(t, stillKnown)
	require.LessOrEqual(t, r.lastApplied, r.log.LastIndex())
}

func TestHandleAppendEntriesHeartbeatDrainsQueue(t *testing.T) {
	r, tr := newTestReplica("2", []string{"1"})
	r.enqueue(transport.Message{Src: "client", MID: "m1", Type: transport.TypeGet, Key: "x"})
	r.currentLeader = transport.Broadcast

	r.handleAppendEntries(transport.Message{Src: "1", Term: 1}) // empty entries: heartbeat

	require.Empty(t, r.pending)
	redirects := tr.messagesOfType(transport.TypeRedirect)
	require.Len(t, redirects, 1)
	require.Equal(t, "1", redirects[0].Leader)
}

func TestHandleAppendEntriesResetsElectionDeadline(t *testing.T) {
	r, _ := newTestReplica("2", []string{"1"})
	r.electionDeadline = time.Now().Add(-time.Hour) // force it stale

	r.handleAppendEntries(transport.Message{Src: "1", Term: 1})
	require.True(t, r.electionDeadline.After(time.Now()))
}
