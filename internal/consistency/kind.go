package consistency

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownKind is returned when an operation kind is neither a buy nor a sell.
	ErrUnknownKind = errors.New("unknown operation kind")
	// ErrUnknownAction is returned when a mutation action cannot be parsed.
	ErrUnknownAction = errors.New("unknown action")
)

// Kind is the direction of an operation.
type Kind int

const (
	KindBuy Kind = iota + 1
	KindSell
)

// ParseKind accepts the canonical names and the legacy synonyms still found
// in persisted records ("compra", "venta", "C", "V").
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "compra", "c", "purchase":
		return KindBuy, nil
	case "sell", "venta", "v", "sale":
		return KindSell, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) Valid() bool { return k == KindBuy || k == KindSell }

func (k Kind) String() string {
	switch k {
	case KindBuy:
		return "buy"
	case KindSell:
		return "sell"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// sign is +1 for buys and -1 for sells.
func (k Kind) sign() float64 {
	switch k {
	case KindBuy:
		return 1
	case KindSell:
		return -1
	}
	return 0
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Action is the mutation proposed against an asset's history.
type Action int

const (
	ActionCreate Action = iota + 1
	ActionEdit
	ActionDelete
)

func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ActionCreate, nil
	case "edit", "update":
		return ActionEdit, nil
	case "delete":
		return ActionDelete, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Action) UnmarshalText(text []byte) error {
	parsed, err := ParseAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
