// Package mode defines the closed set of query categories a request can
// be routed to.
package mode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidMode  = errors.New("invalid mode")
	ErrModeDisabled = fmt.Errorf("%w: mode disabled", ErrInvalidMode)
)

type Mode uint8

const (
	// Auto is resolved to one of the concrete modes before retrieval.
	Auto Mode = iota
	Policy
	Schema
	Documentation
)

// Concrete lists the modes backed by a corpus, in tie-break order.
var Concrete = []Mode{Policy, Schema, Documentation}

func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Policy:
		return "policy"
	case Schema:
		return "schema"
	case Documentation:
		return "documentation"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func (m Mode) IsConcrete() bool {
	return m == Policy || m == Schema || m == Documentation
}

// Parse accepts the canonical names plus the aliases clients send
// ("etl" for schema, "docs" for documentation). An empty value is Auto.
func Parse(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "policy", "policies":
		return Policy, nil
	case "schema", "etl", "database", "db":
		return Schema, nil
	case "documentation", "docs", "doc":
		return Documentation, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Set is a set of enabled concrete modes.
type Set map[Mode]bool

func (s Set) Enabled(m Mode) bool {
	return s[m]
}

// Check resolves whether m may be served. Auto is allowed when at least
// one concrete mode is enabled.
func (s Set) Check(m Mode) error {
	if m == Auto {
		for _, c := range Concrete {
			if s[c] {
				return nil
			}
		}
		return fmt.Errorf("%w: no modes enabled", ErrModeDisabled)
	}
	if !m.IsConcrete() {
		return fmt.Errorf("%w: %s", ErrInvalidMode, m)
	}
	if !s[m] {
		return fmt.Errorf("%w: %s", ErrModeDisabled, m)
	}
	return nil
}
