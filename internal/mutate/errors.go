package mutate

import (
	"errors"
	"fmt"

	"clarity-canvas/internal/model"
)

var (
	// ErrCycle is returned when a group would become its own ancestor.
	ErrCycle = errors.New("group parent cycle")

	// ErrRefused is returned by gated writers when the entity is locked or a
	// gesture is in progress.
	ErrRefused = errors.New("write refused")
)

type NotFoundError struct {
	Kind model.EntityKind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}
