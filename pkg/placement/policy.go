package placement

import (
	"errors"
	"log/slog"

	"bkisolation/pkg/bookie"
	"bkisolation/pkg/isolation"
)

// MembershipSource yields the current group mapping; *isolation.MembershipCache
// is the production implementation.
type MembershipSource interface {
	Membership() (isolation.Membership, error)
}

// IsolatedPolicy wraps an Engine and keeps bookies that belong to foreign
// isolation groups out of every ensemble it forms or repairs.
type IsolatedPolicy struct {
	engine Engine
	groups *isolation.Groups
	source MembershipSource
	logger *slog.Logger
}

// NewIsolatedPolicy builds the policy. source may be nil only when groups is
// disabled.
func NewIsolatedPolicy(engine Engine, groups *isolation.Groups, source MembershipSource, logger *slog.Logger) (*IsolatedPolicy, error) {
	if engine == nil {
		return nil, errors.New("placement: nil engine")
	}
	if groups.Enabled() && source == nil {
		return nil, errors.New("placement: isolation groups configured without a membership source")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IsolatedPolicy{
		engine: engine,
		groups: groups,
		source: source,
		logger: logger,
	}, nil
}

func (p *IsolatedPolicy) Groups() *isolation.Groups {
	return p.groups
}

// ExcludedBookies returns the bookies isolation currently keeps out. If the
// membership cannot be read the result is empty: placement keeps working
// without isolation rather than failing.
func (p *IsolatedPolicy) ExcludedBookies() bookie.Set {
	if !p.groups.Enabled() {
		return bookie.Set{}
	}
	m, err := p.source.Membership()
	if err != nil {
		p.logger.Warn("error getting bookie isolation info", "error", err)
		return bookie.Set{}
	}
	return isolation.ExcludedBookies(m, p.groups)
}

func (p *IsolatedPolicy) merge(excluded bookie.Set) bookie.Set {
	if !p.groups.Enabled() {
		return excluded
	}
	return excluded.Union(p.ExcludedBookies())
}

// NewEnsemble forms an ensemble from bookies outside both the caller's
// exclusions and the isolation exclusions. Engine errors are returned as is.
func (p *IsolatedPolicy) NewEnsemble(ensembleSize, writeQuorum, ackQuorum int,
	customMetadata map[string][]byte, excluded bookie.Set) ([]bookie.Address, error) {
	return p.engine.NewEnsemble(ensembleSize, writeQuorum, ackQuorum, customMetadata, p.merge(excluded))
}

// ReplaceBookie picks a substitute for bookieToReplace under the same
// exclusion rules as NewEnsemble.
func (p *IsolatedPolicy) ReplaceBookie(ensembleSize, writeQuorum, ackQuorum int,
	customMetadata map[string][]byte, currentEnsemble []bookie.Address,
	bookieToReplace bookie.Address, excluded bookie.Set) (bookie.Address, error) {
	return p.engine.ReplaceBookie(ensembleSize, writeQuorum, ackQuorum, customMetadata,
		currentEnsemble, bookieToReplace, p.merge(excluded))
}
