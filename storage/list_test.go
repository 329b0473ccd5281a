package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listKeys(l *recencyList) []string {
	var out []string
	for i := l.head; i != nilIndex; i = l.at(i).next {
		out = append(out, l.at(i).key)
	}
	return out
}

func listKeysBackward(l *recencyList) []string {
	var out []string
	for i := l.tail; i != nilIndex; i = l.at(i).prev {
		out = append(out, l.at(i).key)
	}
	return out
}

func newTestList(keys ...string) (*recencyList, map[string]int32) {
	l := newRecencyList(len(keys))
	idx := make(map[string]int32, len(keys))
	for _, k := range keys {
		i := l.alloc(k, []byte(k))
		l.pushFront(i)
		idx[k] = i
	}
	return l, idx
}

func TestRecencyListPushFront(t *testing.T) {
	l, _ := newTestList("a", "b", "c")

	assert.Equal(t, []string{"c", "b", "a"}, listKeys(l))
	assert.Equal(t, []string{"a", "b", "c"}, listKeysBackward(l))
	assert.Equal(t, 3, l.len())
}

func TestRecencyListRemove(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		want   []string
	}{
		{name: "head", remove: "c", want: []string{"b", "a"}},
		{name: "middle", remove: "b", want: []string{"c", "a"}},
		{name: "tail", remove: "a", want: []string{"c", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, idx := newTestList("a", "b", "c")
			i := idx[tt.remove]

			l.remove(i)

			assert.Equal(t, tt.want, listKeys(l))
			assert.Equal(t, reverse(tt.want), listKeysBackward(l))
			assert.Equal(t, nilIndex, l.at(i).prev, "links must be cleared")
			assert.Equal(t, nilIndex, l.at(i).next, "links must be cleared")
		})
	}
}

func TestRecencyListRemoveOnly(t *testing.T) {
	l, idx := newTestList("a")

	l.remove(idx["a"])

	assert.Equal(t, nilIndex, l.head)
	assert.Equal(t, nilIndex, l.tail)
	assert.Equal(t, 0, l.len())
}

func TestRecencyListMoveToFront(t *testing.T) {
	l, idx := newTestList("a", "b", "c")

	l.moveToFront(idx["a"])
	assert.Equal(t, []string{"a", "c", "b"}, listKeys(l))

	l.moveToFront(idx["c"])
	assert.Equal(t, []string{"c", "a", "b"}, listKeys(l))

	l.moveToFront(idx["c"])
	assert.Equal(t, []string{"c", "a", "b"}, listKeys(l))
	assert.Equal(t, []string{"b", "a", "c"}, listKeysBackward(l))
}

func TestRecencyListPopBack(t *testing.T) {
	l, _ := newTestList("a", "b")

	i := l.popBack()
	require.NotEqual(t, nilIndex, i)
	assert.Equal(t, "a", l.at(i).key)
	assert.Equal(t, nilIndex, l.at(i).prev)

	i = l.popBack()
	assert.Equal(t, "b", l.at(i).key)

	assert.Equal(t, nilIndex, l.popBack())
	assert.Equal(t, 0, l.len())
}

func TestRecencyListReusesReleasedSlots(t *testing.T) {
	l, idx := newTestList("a", "b")

	l.remove(idx["a"])
	l.release(idx["a"])

	i := l.alloc("c", []byte("c"))
	assert.Equal(t, idx["a"], i)
	assert.Len(t, l.entries, 2)

	l.pushFront(i)
	assert.Equal(t, []string{"c", "b"}, listKeys(l))
}

func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
