package store

import (
	"context"
	"errors"
)

// ErrInvalidEntity is returned for entities without a type or id.
var ErrInvalidEntity = errors.New("entity type and id are required")

// Entity is a durable record keyed by an id unique within its type.
type Entity interface {
	EntityType() string
	EntityID() string
}

// Store loads and saves entities.
type Store interface {
	// Load fills entity with the stored value for its type and id.
	Load(ctx context.Context, entity Entity) (bool, error)
	// Save creates or overwrites the entity.
	Save(ctx context.Context, entity Entity) error
	// IDs lists the ids stored for an entity type, sorted.
	IDs(ctx context.Context, entityType string) ([]string, error)
}

// LoadOrCreate loads entity and applies init when it does not exist yet.
// The entity is not saved.
func LoadOrCreate[T Entity](ctx context.Context, s Store, entity T, init func(T)) (bool, error) {
	found, err := s.Load(ctx, entity)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}
	if init != nil {
		init(entity)
	}
	return true, nil
}

func validate(entity Entity) error {
	if entity == nil || entity.EntityType() == "" || entity.EntityID() == "" {
		return ErrInvalidEntity
	}
	return nil
}
