package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

// Chain tries each source in order and returns the first catalog loaded.
type Chain []Source

func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

func (c Chain) Load(ctx context.Context) (*models.Catalog, error) {
	var errs []error
	for _, source := range c {
		cat, err := source.Load(ctx)
		if err == nil {
			return cat, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.WithCatalogContext(source.Name()).WithError(err).Warn("Catalog source failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
	}
	if len(errs) == 0 {
		return nil, ErrCatalogUnavailable
	}
	return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, errors.Join(errs...))
}
