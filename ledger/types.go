package ledger

import (
	"fmt"
	"strings"
)

// Direction is the side of a position. It persists as "long" or "short".
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: unknown direction %q", ErrInvalidRecord, s)
	}
	return d, nil
}

func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

func (d Direction) String() string { return string(d) }

// SignalType is the kind of signal a strategy emits.
type SignalType string

const (
	SignalNone    SignalType = "none"
	SignalEntry   SignalType = "entry"
	SignalExit    SignalType = "exit"
	SignalReverse SignalType = "reverse"
	SignalError   SignalType = "error"
)

func ParseSignalType(s string) (SignalType, error) {
	st := SignalType(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown signal type %q", ErrInvalidRecord, s)
	}
	return st, nil
}

func (st SignalType) Valid() bool {
	switch st {
	case SignalNone, SignalEntry, SignalExit, SignalReverse, SignalError:
		return true
	}
	return false
}

func (st SignalType) String() string { return string(st) }

// QuantityType says whether a quantity counts shares or capital.
type QuantityType string

const (
	Shares  QuantityType = "shares"
	Capital QuantityType = "capital"
)

func ParseQuantityType(s string) (QuantityType, error) {
	q := QuantityType(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return "", fmt.Errorf("%w: unknown quantity type %q", ErrInvalidRecord, s)
	}
	return q, nil
}

func (q QuantityType) Valid() bool {
	return q == Shares || q == Capital
}

func (q QuantityType) String() string { return string(q) }
