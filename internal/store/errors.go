package store

import (
	"errors"
	"fmt"

	"clarity-canvas/internal/model"
)

var (
	ErrMissingID   = errors.New("missing id")
	ErrParentCycle = errors.New("group parent cycle")
)

type NotFoundError struct {
	Kind model.EntityKind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
