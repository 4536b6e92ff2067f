package replica

import (
	"math/rand"
	"time"

	"github.com/sebytremblay/raft-protocol/transport"
)

// Role is the tagged variant a Replica occupies. Leader-only bookkeeping
// (nextIndex, matchIndex, per-peer send timers) lives in leaderState, which
// is nil off-leader, so leader-only invariants are unrepresentable in the
// other two roles — the way spec.md's design notes ask for a sum type
// instead of a shared record with nullable fields.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// leaderState is the per-peer replication bookkeeping that only exists
// while this replica is the leader.
type leaderState struct {
	nextIndex      map[string]int
	matchIndex     map[string]int
	lastAppendSent map[string]time.Time
}

// electionTimeout draws a fresh randomized deadline from [500ms, 800ms].
func electionTimeout() time.Duration {
	return 500*time.Millisecond + time.Duration(rand.Intn(301))*time.Millisecond
}

// resetElectionDeadline is called on every event spec.md names: becoming
// follower, becoming candidate, granting a vote, and receiving a valid
// AppendEntries.
func (r *Replica) resetElectionDeadline() {
	r.electionDeadline = time.Now().Add(electionTimeout())
}

// becomeFollower resets election state and adopts a leader/term if the
// transition was triggered by a message rather than a bare term bump.
func (r *Replica) becomeFollower(term uint64, leader string) {
	stepping := r.role != Follower
	r.role = Follower
	r.leader = nil
	if term > r.currentTerm {
		r.currentTerm = term
		r.votedFor = ""
	}
	if leader != "" {
		r.currentLeader = leader
	}
	r.votes = nil
	r.resetElectionDeadline()

	if stepping {
		r.logf("stepping down to follower, term=%d leader=%s", r.currentTerm, r.currentLeader)
	}
}

// becomeCandidate starts a new election round: increment term, vote for
// self, broadcast RequestVote, reset the deadline.
func (r *Replica) becomeCandidate() {
	r.role = Candidate
	r.leader = nil
	r.currentTerm++
	r.votedFor = r.id
	r.votes = map[string]bool{r.id: true}
	r.currentLeader = transport.Broadcast
	r.resetElectionDeadline()

	r.logf("became candidate, term=%d", r.currentTerm)

	last := r.log.LastIndex()
	lastTerm := r.log.LastTerm()
	for _, p := range r.peers {
		r.send(transport.Message{
			Src:          r.id,
			Dst:          p,
			Leader:       transport.Broadcast,
			Type:         transport.TypeRequestVote,
			Term:         r.currentTerm,
			LastLogIndex: uint64(last),
			LastLogTerm:  lastTerm,
		})
	}
}

// becomeLeader initializes per-peer replication state and fires an
// immediate empty heartbeat, per spec.md 4.1's "Entering leader" rule.
func (r *Replica) becomeLeader() {
	r.role = Leader
	r.currentLeader = r.id
	r.votes = nil

	ls := &leaderState{
		nextIndex:      make(map[string]int, len(r.peers)),
		matchIndex:     make(map[string]int, len(r.peers)),
		lastAppendSent: make(map[string]time.Time, len(r.peers)),
	}
	for _, p := range r.peers {
		ls.nextIndex[p] = r.commitIndex + 1
		ls.matchIndex[p] = 0
	}
	r.leader = ls

	r.logf("became leader, term=%d", r.currentTerm)

	r.broadcastHeartbeat()
	r.lastHeartbeat = time.Now()

	r.drainQueue()
}
