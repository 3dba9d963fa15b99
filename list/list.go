// Package list provides a singly-linked list with a resettable iterator.
package list

import (
	"github.com/pkg/errors"
	"github.com/sjoeen/rcsim/memutils"
)

type node[T comparable] struct {
	value T
	next  *node[T]
}

// List is a singly-linked list. It is not safe for concurrent use.
type List[T comparable] struct {
	count int
	head  *node[T]
	tail  *node[T]
}

func New[T comparable]() *List[T] {
	return &List[T]{}
}

// Len returns the number of items in the list
func (l *List[T]) Len() int {
	return l.count
}

// AddFirst pushes item onto the front of the list
func (l *List[T]) AddFirst(item T) {
	n := &node[T]{value: item, next: l.head}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
	l.count++
}

// AddLast appends item to the back of the list
func (l *List[T]) AddLast(item T) {
	n := &node[T]{value: item}
	if l.tail == nil {
		l.head = n
	} else {
		l.tail.next = n
	}
	l.tail = n
	l.count++
}

// Remove unlinks the first node holding item and reports whether one was found
func (l *List[T]) Remove(item T) bool {
	var prev *node[T]
	for current := l.head; current != nil; current = current.next {
		if current.value != item {
			prev = current
			continue
		}

		l.unlink(prev, current)
		return true
	}

	return false
}

func (l *List[T]) unlink(prev, n *node[T]) {
	if prev == nil {
		l.head = n.next
	} else {
		prev.next = n.next
	}
	if l.tail == n {
		l.tail = prev
	}
	n.next = nil
	l.count--

	memutils.DebugValidate(l)
}

// Destroy drops every node. Items themselves are left to the caller.
func (l *List[T]) Destroy() {
	l.head = nil
	l.tail = nil
	l.count = 0
}

// Items returns the contents of the list from front to back
func (l *List[T]) Items() []T {
	items := make([]T, 0, l.count)
	for current := l.head; current != nil; current = current.next {
		items = append(items, current.value)
	}
	return items
}

func (l *List[T]) Validate() error {
	declaredCount := l.count
	actualCount := 0

	var last *node[T]
	for current := l.head; current != nil; current = current.next {
		actualCount++
		last = current
	}

	if declaredCount != actualCount {
		return errors.Errorf("the listed number of items in the list (%d) does not match the actual number of items (%d)", declaredCount, actualCount)
	}
	if last != l.tail {
		return errors.New("the list's tail does not point at its last node")
	}

	return nil
}

// Iterator walks a List from front to back. The item most recently returned by Next may be removed
// from the list, through Iterator.Remove or List.Remove, without disturbing the iteration. Items
// added to the front after the iterator has started are not visited.
type Iterator[T comparable] struct {
	list    *List[T]
	current *node[T]
	last    *node[T]
	prev    *node[T]
}

func (l *List[T]) Iterator() *Iterator[T] {
	return &Iterator[T]{list: l, current: l.head}
}

// Next returns the next item, or false once the end of the list has been reached
func (it *Iterator[T]) Next() (T, bool) {
	if it.current == nil {
		var zero T
		return zero, false
	}

	if it.last != nil {
		it.prev = it.last
	}
	it.last = it.current
	it.current = it.current.next
	return it.last.value, true
}

// Remove unlinks the item most recently returned by Next. It reports false if there is no such
// item or it has already been removed.
func (it *Iterator[T]) Remove() bool {
	if it.last == nil {
		return false
	}

	target := it.last
	it.last = nil

	prev := it.prev
	if prev == nil || prev.next != target {
		// items were pushed onto the front, or prev was removed out from under us
		prev = nil
		if it.list.head != target {
			prev = it.list.head
			for prev != nil && prev.next != target {
				prev = prev.next
			}
			if prev == nil {
				return false
			}
		}
	}

	it.list.unlink(prev, target)
	return true
}

// Reset rewinds the iterator to the current front of the list
func (it *Iterator[T]) Reset() {
	it.current = it.list.head
	it.last = nil
	it.prev = nil
}
