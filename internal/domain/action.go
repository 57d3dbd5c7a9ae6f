package domain

import (
	"fmt"
	"strings"
)

// Action represents the direction of an executed rebalancing.
type Action int

const (
	ActionBuy Action = iota
	ActionSell
)

// action string constants to avoid magic strings
const (
	actionStringBuy  = "BUY"
	actionStringSell = "SELL"
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the action as its string form.
func (a Action) MarshalText() ([]byte, error) {
	switch a {
	case ActionBuy, ActionSell:
		return []byte(a.String()), nil
	default:
		return nil, fmt.Errorf("unknown action: %d", int(a))
	}
}

// UnmarshalText decodes BUY or SELL, case-insensitively.
func (a *Action) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case actionStringBuy:
		*a = ActionBuy
	case actionStringSell:
		*a = ActionSell
	default:
		return fmt.Errorf("unknown action: %s", string(text))
	}
	return nil
}
