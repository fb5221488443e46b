package bookie

import (
	"sort"
	"strings"
)

// Set is an unordered set of bookie addresses. A nil Set is a valid empty set
// for reads.
type Set map[Address]struct{}

func NewSet(addrs ...Address) Set {
	s := make(Set, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

func (s Set) Add(a Address) {
	s[a] = struct{}{}
}

func (s Set) Has(a Address) bool {
	_, ok := s[a]
	return ok
}

func (s Set) Len() int {
	return len(s)
}

// Union returns a new set holding the members of s and every other set.
// None of the inputs are modified.
func (s Set) Union(others ...Set) Set {
	n := len(s)
	for _, o := range others {
		n += len(o)
	}
	out := make(Set, n)
	for a := range s {
		out[a] = struct{}{}
	}
	for _, o := range others {
		for a := range o {
			out[a] = struct{}{}
		}
	}
	return out
}

// Sorted returns the members ordered by host, then port.
func (s Set) Sorted() []Address {
	res := make([]Address, 0, len(s))
	for a := range s {
		res = append(res, a)
	}
	SortAddresses(res)
	return res
}

func SortAddresses(addrs []Address) {
	sort.Slice(addrs, func(i, j int) bool { return Less(addrs[i], addrs[j]) })
}

func Less(a, b Address) bool {
	if c := strings.Compare(a.Host, b.Host); c != 0 {
		return c < 0
	}
	return a.Port < b.Port
}
