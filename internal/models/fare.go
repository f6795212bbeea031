package models

import (
	"fmt"
	"strings"
)

// FareClass is the cabin a ticket is sold in
type FareClass string

const (
	FareClassEconomy FareClass = "economy"
	FareClassFirst   FareClass = "first"
)

// ParseFareClass accepts the English names and the Portuguese ones used by the
// legacy query-string API ("economica", "primeira"), case-insensitively.
func ParseFareClass(s string) (FareClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "economy", "economica", "económica":
		return FareClassEconomy, nil
	case "first", "primeira":
		return FareClassFirst, nil
	}
	return "", fmt.Errorf("unknown fare class %q", s)
}

// IsFirst reports whether c is first class
func (c FareClass) IsFirst() bool {
	return c == FareClassFirst
}

// FareClassOf maps the stored boolean flag back to a fare class
func FareClassOf(firstClass bool) FareClass {
	if firstClass {
		return FareClassFirst
	}
	return FareClassEconomy
}
