package strategy

import (
	"fmt"

	"GridTradeBot/internal/services/grid"
)

// New builds the policy named by d.Config.Policy
func New(d Deps) (Policy, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	switch d.Config.Policy {
	case grid.PolicyNormal, "":
		return NewNormal(d), nil
	case grid.PolicyShift:
		return NewShift(d), nil
	case grid.PolicyFan:
		return NewFan(d), nil
	default:
		return nil, fmt.Errorf("%w: %q", grid.ErrPolicy, d.Config.Policy)
	}
}
