// Package pageset provides an ordered stack of page ids with the set
// operations used while partitioning the eviction buffer.
package pageset

import (
	"math/rand/v2"
	"slices"
)

// None is returned when an element does not exist.
const None = -1

const initialCapacity = 64

// A Set is an ordered collection of page ids. Push and Pop work at the end.
// Remove does not preserve order.
type Set struct {
	pages []int
}

// New creates an empty Set.
func New() *Set {
	return &Set{pages: make([]int, 0, initialCapacity)}
}

// Of creates a Set holding the given pages in order.
func Of(pages ...int) *Set {
	s := New()
	s.pages = append(s.pages, pages...)

	return s
}

// Range creates a Set holding 0..n-1 in ascending order.
func Range(n int) *Set {
	s := &Set{pages: make([]int, n)}
	for i := range s.pages {
		s.pages[i] = i
	}

	return s
}

// Dup returns a deep copy of the set.
func (s *Set) Dup() *Set {
	return &Set{pages: slices.Clone(s.pages)}
}

// MoveFrom replaces the content of s with the content of from and leaves from
// empty.
func (s *Set) MoveFrom(from *Set) {
	s.pages = from.pages
	from.pages = nil
}

// Clear removes all pages.
func (s *Set) Clear() {
	s.pages = s.pages[:0]
}

// Push appends a page.
func (s *Set) Push(page int) {
	s.pages = append(s.pages, page)
}

// Pop removes and returns the last page, or None if the set is empty.
func (s *Set) Pop() int {
	if len(s.pages) == 0 {
		return None
	}

	last := s.pages[len(s.pages)-1]
	s.pages = s.pages[:len(s.pages)-1]

	return last
}

// Size returns the number of pages.
func (s *Set) Size() int {
	return len(s.pages)
}

// Get returns the page at position i, or None if i is out of range.
func (s *Set) Get(i int) int {
	if i < 0 || i >= len(s.pages) {
		return None
	}

	return s.pages[i]
}

// Set overwrites position i. Out-of-range positions are ignored.
func (s *Set) Set(i, page int) {
	if i < 0 || i >= len(s.pages) {
		return
	}

	s.pages[i] = page
}

// Replace changes every occurrence of from into to.
func (s *Set) Replace(from, to int) {
	for i, p := range s.pages {
		if p == from {
			s.pages[i] = to
		}
	}
}

// Contains tells if the page is in the set.
func (s *Set) Contains(page int) bool {
	return slices.Contains(s.pages, page)
}

// Remove deletes the first occurrence of page. The last element is moved into
// the hole.
func (s *Set) Remove(page int) {
	if len(s.pages) == 0 {
		return
	}

	last := s.Pop()
	if last == page {
		return
	}

	for i, p := range s.pages {
		if p == page {
			s.pages[i] = last
			return
		}
	}

	s.Push(last)
}

// RemoveSet removes every page of other from s.
func (s *Set) RemoveSet(other *Set) {
	for i := other.Size() - 1; i >= 0; i-- {
		s.Remove(other.Get(i))
	}
}

// Shuffle randomizes the order of the pages.
func (s *Set) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(s.pages), func(i, j int) {
		s.pages[i], s.pages[j] = s.pages[j], s.pages[i]
	})
}

// Sort orders the pages ascending.
func (s *Set) Sort() {
	slices.Sort(s.pages)
}

// Pages returns a copy of the pages in order.
func (s *Set) Pages() []int {
	return slices.Clone(s.pages)
}
