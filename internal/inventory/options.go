package inventory

import (
	"context"
	"fmt"
	"strings"

	errspkg "github.com/drblury/shopmesh/internal/runtime/errors"
)

// OptionCatalog manages one option catalog (colors or sizes).
type OptionCatalog struct {
	kind string
	repo OptionRepository
}

func (c *OptionCatalog) List(ctx context.Context) ([]Option, error) {
	return c.repo.List(ctx)
}

func (c *OptionCatalog) FindByName(ctx context.Context, name string) (Option, error) {
	return c.repo.FindByName(ctx, strings.TrimSpace(name))
}

// Create adds name to the catalog. Names are unique.
func (c *OptionCatalog) Create(ctx context.Context, name string) (Option, error) {
	name = strings.TrimSpace(name)
	if err := c.checkFree(ctx, name); err != nil {
		return Option{}, err
	}
	return c.repo.Create(ctx, name)
}

func (c *OptionCatalog) Rename(ctx context.Context, id, name string) (Option, error) {
	name = strings.TrimSpace(name)
	if err := c.checkFree(ctx, name); err != nil {
		return Option{}, err
	}
	return c.repo.Rename(ctx, id, name)
}

func (c *OptionCatalog) Delete(ctx context.Context, id string) error {
	return c.repo.Delete(ctx, id)
}

func (c *OptionCatalog) checkFree(ctx context.Context, name string) error {
	if name == "" {
		return &errspkg.ValidationError{Field: c.kind, Reason: "name must not be empty"}
	}
	_, err := c.repo.FindByName(ctx, name)
	switch {
	case err == nil:
		return &errspkg.ValidationError{Field: c.kind, Reason: fmt.Sprintf("%q already exists", name)}
	case errspkg.IsNotFound(err):
		return nil
	}
	return err
}
