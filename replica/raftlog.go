package replica

import "github.com/sebytremblay/raft-protocol/transport"

// Log is a 1-origin append-only sequence with a fixed sentinel entry at
// index 0 ({term:0, command:none}), so prev_log_index arithmetic is total
// for any live index >= 0. Only a leader appends at the tail; only a
// follower truncates a conflicting suffix.
type Log struct {
	entries []transport.Entry
}

// NewLog returns a log containing only the index-0 sentinel.
func NewLog() *Log {
	return &Log{entries: []transport.Entry{{Term: 0, Command: transport.CommandNone}}}
}

// LastIndex is the highest valid index in the log, sentinel included.
func (l *Log) LastIndex() int {
	return len(l.entries) - 1
}

// LastTerm is the term stamped on the entry at LastIndex.
func (l *Log) LastTerm() uint64 {
	return l.entries[l.LastIndex()].Term
}

// Get returns the entry at i and whether i is in bounds.
func (l *Log) Get(i int) (transport.Entry, bool) {
	if i < 0 || i > l.LastIndex() {
		return transport.Entry{}, false
	}
	return l.entries[i], true
}

// Append is the leader-only tail append; it returns the assigned index.
func (l *Log) Append(e transport.Entry) int {
	l.entries = append(l.entries, e)
	return l.LastIndex()
}

// TruncateFrom discards every index >= i. Follower-only: a leader never
// overwrites or deletes its own entries (Leader Append-Only).
func (l *Log) TruncateFrom(i int) {
	if i <= 0 || i > l.LastIndex() {
		return
	}
	l.entries = l.entries[:i]
}

// Match reports whether prevIndex is within bounds and the entry there
// carries prevTerm.
func (l *Log) Match(prevIndex int, prevTerm uint64) bool {
	e, ok := l.Get(prevIndex)
	if !ok {
		return false
	}
	return e.Term == prevTerm
}

// FirstConflictIndex accelerates leader back-off after a rejected append.
// If i is beyond the log, it returns the last valid index (the leader
// should retry from what the follower actually has). Otherwise it returns
// the smallest index sharing log[i]'s term, so the leader can skip the
// whole run of conflicting entries in one step rather than decrementing by
// one and retrying.
func (l *Log) FirstConflictIndex(i int) int {
	if i > l.LastIndex() {
		return l.LastIndex()
	}
	if i < 0 {
		return 0
	}
	term := l.entries[i].Term
	for j := 0; j <= i; j++ {
		if l.entries[j].Term == term {
			return j
		}
	}
	return i
}

// Slice returns a copy of every entry from index from through the end of
// the log. A from past the end yields nil; a negative from is treated as 0.
func (l *Log) Slice(from int) []transport.Entry {
	if from > l.LastIndex() {
		return nil
	}
	if from < 0 {
		from = 0
	}
	out := make([]transport.Entry, len(l.entries)-from)
	copy(out, l.entries[from:])
	return out
}

// AppendAll appends entries in order at the tail; used by the follower
// append handler once conflicts have been truncated away.
func (l *Log) AppendAll(entries []transport.Entry) {
	l.entries = append(l.entries, entries...)
}

// Reconcile applies an AppendEntries payload logically starting at
// prevIndex+1: it skips over any prefix already present with a matching
// term, truncates the suffix only from the first index where an existing
// entry's term actually diverges from the incoming one, and appends
// whatever is left. An empty (or fully-matching) entries slice — the
// heartbeat case — leaves the log untouched, so a heartbeat carrying a
// stale prev_log_index can never regress an already-appended suffix.
// Returns the index truncation started at, or 0 if none occurred.
func (l *Log) Reconcile(prevIndex int, entries []transport.Entry) int {
	for i, e := range entries {
		idx := prevIndex + 1 + i
		existing, ok := l.Get(idx)
		if !ok {
			l.AppendAll(entries[i:])
			return 0
		}
		if existing.Term != e.Term {
			l.TruncateFrom(idx)
			l.AppendAll(entries[i:])
			return idx
		}
	}
	return 0
}
