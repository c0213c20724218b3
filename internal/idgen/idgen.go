// Package idgen generates chat message identifiers.
package idgen

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds accepted by New.
const (
	KindULID   = "ulid"
	KindUUID   = "uuid"
	KindNanoID = "nanoid"
	KindKSUID  = "ksuid"
	KindCUID2  = "cuid2"
)

var ErrUnknownKind = errors.New("unknown id kind")

// Generator produces unique string ids and validates ids of its own kind.
type Generator interface {
	Generate() (string, error)
	Validate(id string) error
}

// New returns the generator for kind. An empty kind means ULID.
func New(kind string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindULID:
		return NewULIDGenerator(), nil
	case KindUUID:
		return NewUUIDGenerator(), nil
	case KindNanoID:
		return NewNanoIDGenerator(DefaultNanoIDSize, DefaultNanoIDAlphabet)
	case KindKSUID:
		return NewKSUIDGenerator(), nil
	case KindCUID2:
		return NewCUID2Generator(DefaultCUID2Length)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// MustGenerate returns a fresh id or panics. Every generator here draws from
// crypto/rand, so an error means the process has no entropy source left.
func MustGenerate(g Generator) string {
	id, err := g.Generate()
	if err != nil {
		panic(fmt.Sprintf("idgen: %v", err))
	}
	return id
}
