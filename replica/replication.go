package replica

import (
	"sort"
	"time"

	"github.com/sebytremblay/raft-protocol/transport"
)

// broadcastHeartbeat sends an empty AppendEntries to every peer. Heartbeats
// are the leader's suppression signal against follower elections and the
// canonical carrier of leaderCommit.
func (r *Replica) broadcastHeartbeat() {
	for _, p := range r.peers {
		r.sendAppendChunk(p, r.leader.nextIndex[p], nil)
	}
}

// replicateToLaggingPeers sends chunked data AppendEntries to any peer that
// isn't caught up, no more often than once per appendPaceInterval per peer,
// per spec.md §4.4's pacing rule.
func (r *Replica) replicateToLaggingPeers(now time.Time) {
	lastIndex := r.log.LastIndex()
	for _, p := range r.peers {
		if r.leader.matchIndex[p] >= lastIndex {
			continue
		}
		if now.Sub(r.leader.lastAppendSent[p]) < appendPaceInterval {
			continue
		}
		r.sendReplicationChunks(p)
		r.leader.lastAppendSent[p] = now
	}
}

// sendReplicationChunks sends log[nextIndex[p]..end] to p, split into
// groups of at most maxEntriesPerChunk, each carrying the same prev_* pair
// so the follower can validate every chunk independently.
func (r *Replica) sendReplicationChunks(p string) {
	next := r.leader.nextIndex[p]
	entries := r.log.Slice(next)
	if len(entries) == 0 {
		r.sendAppendChunk(p, next, nil)
		return
	}
	for start := 0; start < len(entries); start += maxEntriesPerChunk {
		end := start + maxEntriesPerChunk
		if end > len(entries) {
			end = len(entries)
		}
		r.sendAppendChunk(p, next, entries[start:end])
	}
}

func (r *Replica) sendAppendChunk(p string, next int, entries []transport.Entry) {
	prevIndex := next - 1
	prevTerm := uint64(0)
	if e, ok := r.log.Get(prevIndex); ok {
		prevTerm = e.Term
	}
	r.send(transport.Message{
		Src:          r.id,
		Dst:          p,
		Leader:       r.id,
		Type:         transport.TypeAppend,
		Term:         r.currentTerm,
		PrevLogIndex: uint64(prevIndex),
		PrevLogTerm:  prevTerm,
		Entries:      entries,
		LeaderCommit: uint64(r.commitIndex),
	})
}

// handleAppendOK processes a successful append-ack. prevLogIndex + len(entries)
// is the new match_index for that peer, per spec.md §4.4.
func (r *Replica) handleAppendOK(msg transport.Message) {
	p := msg.Src
	if _, known := r.leader.nextIndex[p]; !known {
		return
	}

	matched := int(msg.PrevLogIndex) + len(msg.Entries)
	if matched > r.leader.matchIndex[p] {
		r.leader.matchIndex[p] = matched
	}
	r.leader.nextIndex[p] = r.leader.matchIndex[p] + 1

	r.advanceCommitIndex()
}

// handleAppendFail applies the leader's back-off rule: jump to the
// follower's conflict hint, but never regress below what's already known
// matched nor below 1, and retry immediately. The hint is always taken as
// given: a fail whose first_index is 0 or absent moves nextIndex to
// max(matchIndex, 1); there is no decrement-by-one fallback.
func (r *Replica) handleAppendFail(msg transport.Message) {
	p := msg.Src
	if _, known := r.leader.nextIndex[p]; !known {
		return
	}

	next := int(msg.FirstIndex)
	if next < r.leader.matchIndex[p] {
		next = r.leader.matchIndex[p]
	}
	if next < 1 {
		next = 1
	}
	r.leader.nextIndex[p] = next

	r.sendReplicationChunks(p)
	r.leader.lastAppendSent[p] = time.Now()
}

// advanceCommitIndex implements spec.md §9's resolved commit median
// formula: gather match_index over every peer plus the leader's own
// |log|-1 (a leader is trivially caught up with itself), sort ascending,
// and take the element at position len-majority (majority = floor(len/2)+1,
// which equals len-ceil(len/2) for an odd len) — at least a majority of the
// values sit at or after that position, so it is the highest index
// replicated on a majority. The candidate index only actually advances
// commit_index if its entry belongs to the current term (State Machine
// Safety: counting alone can't commit a prior-term entry).
func (r *Replica) advanceCommitIndex() {
	matches := make([]int, 0, len(r.peers)+1)
	matches = append(matches, r.log.LastIndex())
	for _, p := range r.peers {
		matches = append(matches, r.leader.matchIndex[p])
	}
	sort.Ints(matches)

	n := len(matches)
	pos := n - r.majority()
	candidate := matches[pos]

	if candidate <= r.commitIndex {
		return
	}
	entry, ok := r.log.Get(candidate)
	if !ok || entry.Term != r.currentTerm {
		return
	}

	r.commitIndex = candidate
}
