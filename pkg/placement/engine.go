package placement

import (
	"errors"
	"fmt"

	"bkisolation/pkg/bookie"
)

var (
	ErrNotEnoughBookies = errors.New("not enough bookies available")
	ErrInvalidQuorum    = errors.New("invalid ensemble/quorum sizes")
)

// Engine selects bookies for ensembles. Implementations must treat the
// excluded set as read-only.
type Engine interface {
	NewEnsemble(ensembleSize, writeQuorum, ackQuorum int,
		customMetadata map[string][]byte, excluded bookie.Set) ([]bookie.Address, error)

	ReplaceBookie(ensembleSize, writeQuorum, ackQuorum int,
		customMetadata map[string][]byte, currentEnsemble []bookie.Address,
		bookieToReplace bookie.Address, excluded bookie.Set) (bookie.Address, error)
}

func validateQuorum(ensembleSize, writeQuorum, ackQuorum int) error {
	if ackQuorum <= 0 || writeQuorum < ackQuorum || ensembleSize < writeQuorum {
		return fmt.Errorf("%w: ensemble=%d write=%d ack=%d",
			ErrInvalidQuorum, ensembleSize, writeQuorum, ackQuorum)
	}
	return nil
}
