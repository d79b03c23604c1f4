package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes enrolled identities from automatically minted ones
type Kind uint8

const (
	KindKnown   Kind = iota + 1 // Enrolled with a name
	KindUnknown                 // Minted from a persistently unrecognized track
)

func (k Kind) String() string {
	switch k {
	case KindKnown:
		return "known"
	case KindUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// unknownPrefix is the persisted and displayed form of Unknown identities.
const unknownPrefix = "Unknown"

// Identity is the label owned by one or more embedding rows: either a Known
// name or an Unknown serial. The zero value is "no identity".
type Identity struct {
	Kind   Kind
	Name   string // set for KindKnown
	Serial int    // set for KindUnknown, starts at 1
}

// Known returns the identity for an enrolled name.
func Known(name string) Identity {
	return Identity{Kind: KindKnown, Name: name}
}

// Unknown returns the identity for an Unknown serial.
func Unknown(serial int) Identity {
	return Identity{Kind: KindUnknown, Serial: serial}
}

// IsZero reports whether id is the zero value.
func (id Identity) IsZero() bool {
	return id.Kind == 0
}

// IsUnknown reports whether id was minted by unknown promotion.
func (id Identity) IsUnknown() bool {
	return id.Kind == KindUnknown
}

// String renders the label, e.g. "Alice" or "Unknown3".
func (id Identity) String() string {
	switch id.Kind {
	case KindKnown:
		return id.Name
	case KindUnknown:
		return unknownPrefix + strconv.Itoa(id.Serial)
	default:
		return ""
	}
}

// ParseLabel converts a persisted label back into an Identity.
// "Unknown" followed by a positive integer is an Unknown serial; any other
// non-blank string is a Known name.
func ParseLabel(label string) (Identity, error) {
	if strings.TrimSpace(label) == "" {
		return Identity{}, fmt.Errorf("%w: empty", ErrInvalidLabel)
	}
	if serial, ok := parseUnknownSerial(label); ok {
		return Unknown(serial), nil
	}
	return Known(label), nil
}

// ValidateKnownName checks that name can be used for an enrolled identity.
func ValidateKnownName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidLabel)
	}
	if name != strings.TrimSpace(name) {
		return fmt.Errorf("%w: %q has leading or trailing spaces", ErrInvalidLabel, name)
	}
	if _, ok := unknownDigits(name); ok {
		return fmt.Errorf("%w: %q", ErrReservedLabel, name)
	}
	return nil
}

// unknownDigits returns the digit suffix of an "Unknown<digits>" label.
func unknownDigits(label string) (string, bool) {
	digits, ok := strings.CutPrefix(label, unknownPrefix)
	if !ok || digits == "" {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return digits, true
}

// parseUnknownSerial accepts only the canonical form written by String, so
// "Unknown007" is not read back as Unknown7.
func parseUnknownSerial(label string) (int, bool) {
	digits, ok := unknownDigits(label)
	if !ok || digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}
