package isolation

import (
	"encoding/json"
	"errors"
	"fmt"

	"bkisolation/pkg/bookie"
)

var (
	ErrConfigUnavailable   = errors.New("bookie isolation info unavailable")
	ErrMalformedMembership = errors.New("malformed bookie isolation groups")
)

// Membership maps a group name to the bookies registered in it. The same
// bookie may appear under several groups.
type Membership map[string]map[bookie.Address]bookie.Info

// Decoder turns the raw znode payload into a Membership.
type Decoder func(data []byte) (Membership, error)

// DecodeMembership parses the JSON document stored at the groups path. Any
// failure rejects the whole payload.
func DecodeMembership(data []byte) (Membership, error) {
	var m Membership
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMembership, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: null document", ErrMalformedMembership)
	}
	for group, bookies := range m {
		if bookies == nil {
			return nil, fmt.Errorf("%w: group %q is null", ErrMalformedMembership, group)
		}
	}
	return m, nil
}

// ExcludedBookies returns every bookie registered in a group that is not one
// of groups. A bookie listed in both an allowed and a disallowed group is
// excluded.
func ExcludedBookies(m Membership, groups *Groups) bookie.Set {
	excluded := make(bookie.Set)
	for group, bookies := range m {
		if groups.Contains(group) {
			continue
		}
		for addr := range bookies {
			excluded.Add(addr)
		}
	}
	return excluded
}
