package placement

import (
	"fmt"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"bkisolation/pkg/bookie"
)

type bookieMap = skipmap.FuncMap[bookie.Address, struct{}]

// Pool is a minimal engine over a set of registered bookies. It knows nothing
// about racks: it walks the bookies in address order from a rotating start
// offset and takes the first ones that are not excluded.
type Pool struct {
	bookies *bookieMap
	next    atomic.Uint64
}

func NewPool(addrs ...bookie.Address) *Pool {
	p := &Pool{bookies: skipmap.NewFunc[bookie.Address, struct{}](bookie.Less)}
	for _, a := range addrs {
		p.Add(a)
	}
	return p
}

func (p *Pool) Add(a bookie.Address) {
	p.bookies.Store(a, struct{}{})
}

func (p *Pool) Remove(a bookie.Address) {
	p.bookies.Delete(a)
}

// Sync makes the pool hold exactly addrs.
func (p *Pool) Sync(addrs []bookie.Address) {
	keep := bookie.NewSet(addrs...)
	p.bookies.Range(func(a bookie.Address, _ struct{}) bool {
		if !keep.Has(a) {
			p.bookies.Delete(a)
		}
		return true
	})
	for _, a := range addrs {
		p.bookies.Store(a, struct{}{})
	}
}

// Bookies returns the registered bookies in address order.
func (p *Pool) Bookies() []bookie.Address {
	res := make([]bookie.Address, 0, p.bookies.Len())
	p.bookies.Range(func(a bookie.Address, _ struct{}) bool {
		res = append(res, a)
		return true
	})
	return res
}

// candidates returns the bookies not in any of skip, rotated by one position
// per call so consecutive ensembles start on different bookies.
func (p *Pool) candidates(skip ...bookie.Set) []bookie.Address {
	all := p.Bookies()
	res := make([]bookie.Address, 0, len(all))
	if len(all) == 0 {
		return res
	}
	start := int(p.next.Add(1)-1) % len(all)
	for i := 0; i < len(all); i++ {
		a := all[(start+i)%len(all)]
		skipped := false
		for _, s := range skip {
			if s.Has(a) {
				skipped = true
				break
			}
		}
		if !skipped {
			res = append(res, a)
		}
	}
	return res
}

func (p *Pool) NewEnsemble(ensembleSize, writeQuorum, ackQuorum int,
	_ map[string][]byte, excluded bookie.Set) ([]bookie.Address, error) {
	if err := validateQuorum(ensembleSize, writeQuorum, ackQuorum); err != nil {
		return nil, err
	}
	cands := p.candidates(excluded)
	if len(cands) < ensembleSize {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughBookies, ensembleSize, len(cands))
	}
	return cands[:ensembleSize], nil
}

func (p *Pool) ReplaceBookie(ensembleSize, writeQuorum, ackQuorum int,
	_ map[string][]byte, currentEnsemble []bookie.Address,
	bookieToReplace bookie.Address, excluded bookie.Set) (bookie.Address, error) {
	if err := validateQuorum(ensembleSize, writeQuorum, ackQuorum); err != nil {
		return bookie.Address{}, err
	}
	current := bookie.NewSet(currentEnsemble...)
	current.Add(bookieToReplace)

	cands := p.candidates(excluded, current)
	if len(cands) == 0 {
		return bookie.Address{}, fmt.Errorf("%w: no replacement for %s", ErrNotEnoughBookies, bookieToReplace)
	}
	return cands[0], nil
}
