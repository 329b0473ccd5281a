package storage

// nilIndex marks an absent neighbor or an empty list end.
const nilIndex int32 = -1

// entry is one cache record. prev points at the more recently used
// neighbor, next at the less recently used one.
type entry struct {
	key   string
	value []byte
	prev  int32
	next  int32
}

func (e *entry) cost() int64 {
	return int64(len(e.key) + len(e.value))
}

// recencyList is a doubly-linked list threaded through an arena of
// entries. Links are arena indices, so the list never owns an entry: the
// cache index decides when a slot is allocated and released.
//
// recencyList is not safe for concurrent use.
type recencyList struct {
	entries []entry
	free    []int32
	head    int32 // most recently used
	tail    int32 // least recently used
	length  int
}

func newRecencyList(hint int) *recencyList {
	if hint < 0 {
		hint = 0
	}
	return &recencyList{
		entries: make([]entry, 0, hint),
		head:    nilIndex,
		tail:    nilIndex,
	}
}

// alloc stores key and value in a free slot and returns its index. The
// slot is not linked into the list.
func (l *recencyList) alloc(key string, value []byte) int32 {
	if n := len(l.free); n > 0 {
		i := l.free[n-1]
		l.free = l.free[:n-1]
		l.entries[i] = entry{key: key, value: value, prev: nilIndex, next: nilIndex}
		return i
	}
	l.entries = append(l.entries, entry{key: key, value: value, prev: nilIndex, next: nilIndex})
	return int32(len(l.entries) - 1)
}

// release returns an unlinked slot to the free list.
func (l *recencyList) release(i int32) {
	l.entries[i] = entry{prev: nilIndex, next: nilIndex}
	l.free = append(l.free, i)
}

func (l *recencyList) at(i int32) *entry {
	return &l.entries[i]
}

func (l *recencyList) len() int {
	return l.length
}

func (l *recencyList) pushFront(i int32) {
	e := &l.entries[i]
	e.prev = nilIndex
	e.next = l.head
	if l.head != nilIndex {
		l.entries[l.head].prev = i
	}
	l.head = i
	if l.tail == nilIndex {
		l.tail = i
	}
	l.length++
}

// remove unlinks i from any position and clears its links.
func (l *recencyList) remove(i int32) {
	e := &l.entries[i]
	if e.prev != nilIndex {
		l.entries[e.prev].next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nilIndex {
		l.entries[e.next].prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nilIndex
	e.next = nilIndex
	l.length--
}

func (l *recencyList) moveToFront(i int32) {
	if l.head == i {
		return
	}
	l.remove(i)
	l.pushFront(i)
}

// popBack unlinks and returns the least recently used index, or nilIndex
// when the list is empty.
func (l *recencyList) popBack() int32 {
	i := l.tail
	if i == nilIndex {
		return nilIndex
	}
	l.remove(i)
	return i
}
