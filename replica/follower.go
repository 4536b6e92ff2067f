package replica

import (
	"github.com/sebytremblay/raft-protocol/transport"
)

// handleAppendEntries is the follower append handler from spec.md §4.5. A
// message from a stale term is rejected with a fail before anything else,
// leaving this replica's term and leader untouched. Otherwise it
// transitions this replica to follower (a valid leader has been heard
// from, even if the term is unchanged), validates prev_log_index and
// prev_log_term, drains the pending-client queue, truncates and appends,
// sets commit_index, and acknowledges.
func (r *Replica) handleAppendEntries(msg transport.Message) {
	if msg.Term < r.currentTerm {
		r.send(transport.Message{
			Src: r.id, Dst: msg.Src, Leader: r.leaderID(), Type: transport.TypeFail,
			Term: r.currentTerm, FirstIndex: uint64(r.log.FirstConflictIndex(int(msg.PrevLogIndex))),
		})
		return
	}

	r.becomeFollower(msg.Term, msg.Src)

	prevIndex := int(msg.PrevLogIndex)
	if !r.log.Match(prevIndex, msg.PrevLogTerm) {
		r.send(transport.Message{
			Src: r.id, Dst: msg.Src, Leader: r.leaderID(), Type: transport.TypeFail,
			Term: r.currentTerm, FirstIndex: uint64(r.log.FirstConflictIndex(prevIndex)),
		})
		return
	}

	// A valid AppendEntries, heartbeat or not, is the canonical signal a
	// leader exists: drain the queue before touching the log, per spec.md
	// §9's resolved "queue drain trigger" open question.
	r.drainQueue()

	if truncatedFrom := r.log.Reconcile(prevIndex, msg.Entries); truncatedFrom > 0 {
		r.forgetCommittedMIDsFrom(truncatedFrom)
	}

	if int(msg.LeaderCommit) < r.log.LastIndex() {
		r.commitIndex = int(msg.LeaderCommit)
	} else {
		r.commitIndex = r.log.LastIndex()
	}

	r.send(transport.Message{
		Src: r.id, Dst: msg.Src, Leader: r.leaderID(), Type: transport.TypeOK,
		Term: r.currentTerm, PrevLogIndex: msg.PrevLogIndex, PrevLogTerm: msg.PrevLogTerm,
		Entries: msg.Entries,
	})
}
