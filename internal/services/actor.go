package services

// Capability is a right granted to the caller by the authentication layer.
type Capability uint8

const (
	// CapSell allows submitting sales.
	CapSell Capability = 1 << iota
	// CapStock allows recording stock entries.
	CapStock
	// CapElevated is the admin right: manual exits, catalog changes,
	// cancellations, refunds and chain audits.
	CapElevated
)

// Actor is who performs an operation and what it may do.
type Actor struct {
	UserID uint
	Caps   Capability
}

// Has reports whether every capability in c is granted.
func (a Actor) Has(c Capability) bool { return a.Caps&c == c }

func (a Actor) require(c Capability) error {
	if !a.Has(c) {
		return ErrForbidden
	}
	return nil
}
