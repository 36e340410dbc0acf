package common

import (
	"github.com/oklog/ulid/v2"
)

// NewULID returns a lexically sortable 26-char job identifier.
func NewULID() (string, error) {
	id, err := ulid.New(ulid.Now(), ulid.DefaultEntropy())
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
