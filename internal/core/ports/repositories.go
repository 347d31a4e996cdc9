package ports

import (
	"context"

	"github.com/samirrijal/estatemap/internal/core/domain"
)

// PropertyRepository reads listings owned by the listing service.
// Both methods return only approved properties with non-null coordinates.
type PropertyRepository interface {
	ListMappable(ctx context.Context) ([]domain.Property, error)
	// ListMappableInBox narrows ListMappable to the given box, edges included.
	ListMappableInBox(ctx context.Context, box domain.Bounds) ([]domain.Property, error)
}
