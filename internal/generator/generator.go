// Package generator produces identifiers for recording brackets.
package generator

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

type Generator[T any] interface {
	Next() (T, error)
}

// UUIDV4Generator yields random UUIDv4 strings. It is the bracket ID source
// in production.
type UUIDV4Generator struct{}

func (g *UUIDV4Generator) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate bracket ID: %w", err)
	}
	return id.String(), nil
}

var _ Generator[string] = &UUIDV4Generator{}

// Sequence yields "<Prefix>-1", "<Prefix>-2", ... and is safe for concurrent
// use. Tests use it where IDs must be predictable.
type Sequence struct {
	Prefix string
	n      atomic.Uint64
}

func (s *Sequence) Next() (string, error) {
	return fmt.Sprintf("%s-%d", s.Prefix, s.n.Add(1)), nil
}

var _ Generator[string] = (*Sequence)(nil)
