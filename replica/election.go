package replica

import (
	"github.com/sebytremblay/raft-protocol/transport"
)

// handleRequestVote evaluates a vote request under the current (possibly
// just-reconciled) term. Term reconciliation happens in the event loop
// before this is called, so by the time we get here msg.Term <= currentTerm
// unless it caused a step-down, in which case currentTerm already equals
// msg.Term.
func (r *Replica) handleRequestVote(msg transport.Message) {
	resp := transport.Message{
		Src:    r.id,
		Dst:    msg.Src,
		Leader: r.leaderID(),
		Type:   transport.TypeVote,
		Term:   r.currentTerm,
		Vote:   false,
	}

	grant := msg.Term >= r.currentTerm &&
		r.role == Follower &&
		r.candidateLogUpToDate(msg.LastLogTerm, msg.LastLogIndex) &&
		(r.votedFor == "" || r.votedFor == msg.Src)

	if grant {
		r.votedFor = msg.Src
		r.resetElectionDeadline()
		resp.Vote = true
		r.logf("granted vote to %s for term %d", msg.Src, r.currentTerm)
	}

	r.send(resp)
}

// candidateLogUpToDate implements the up-to-date comparison from the Raft
// thesis: a higher last-log term wins outright; a tied term falls back to
// the longer log.
func (r *Replica) candidateLogUpToDate(lastLogTerm uint64, lastLogIndex uint64) bool {
	voterTerm := r.log.LastTerm()
	voterIndex := uint64(r.log.LastIndex())
	if lastLogTerm != voterTerm {
		return lastLogTerm > voterTerm
	}
	return lastLogIndex >= voterIndex
}

// handleVote tallies a vote response. Only Vote:true responses from
// distinct voters count; a majority (peers + self) promotes to leader.
func (r *Replica) handleVote(msg transport.Message) {
	if r.role != Candidate || msg.Term != r.currentTerm || !msg.Vote {
		return
	}

	r.votes[msg.Src] = true
	if len(r.votes) >= r.majority() {
		r.becomeLeader()
	}
}

// majority is floor(N/2)+1 where N is the cluster size (peers plus self).
func (r *Replica) majority() int {
	n := len(r.peers) + 1
	return n/2 + 1
}
