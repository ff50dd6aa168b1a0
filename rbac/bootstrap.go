package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// crudActions are the permission verbs seeded for every resource.
var crudActions = []struct {
	action string
	label  string
}{
	{"add", "Can add"},
	{"view", "Can view"},
	{"change", "Can change"},
	{"delete", "Can delete"},
}

// BootstrapConfig seeds the catalogue on first start. Resources get a
// standard CRUD permission quartet each; SystemRoles maps role names to
// the codenames they grant and creates them with IsSystem set.
type BootstrapConfig struct {
	TenantID    string
	Resources   []string
	SystemRoles map[string][]string
}

// Bootstrap is idempotent: existing permissions keep their identity,
// existing roles keep their rows and get their grant set refreshed.
func Bootstrap(ctx context.Context, store Store, cfg BootstrapConfig) error {
	for _, resource := range cfg.Resources {
		for _, verb := range crudActions {
			perm := &Permission{
				ID:        uuid.NewString(),
				Codename:  verb.action + "_" + resource,
				Name:      verb.label + " " + resource,
				Resource:  resource,
				Custom:    false,
				CreatedAt: time.Now(),
			}
			if err := store.CreatePermission(ctx, perm); err != nil {
				return fmt.Errorf("bootstrap permission %s: %w", perm.Codename, err)
			}
		}
	}

	resolver := NewResolver(store)
	for name, codenames := range cfg.SystemRoles {
		role, err := store.GetRoleByName(ctx, cfg.TenantID, name)
		if errors.Is(err, ErrRoleNotFound) {
			role = &Role{
				ID:        uuid.NewString(),
				TenantID:  cfg.TenantID,
				Name:      name,
				IsSystem:  true,
				CreatedAt: time.Now(),
			}
			if err := store.CreateRole(ctx, role); err != nil {
				return fmt.Errorf("bootstrap role %s: %w", name, err)
			}
		} else if err != nil {
			return fmt.Errorf("bootstrap role %s: %w", name, err)
		}

		if err := resolver.UpdateRolePermissions(ctx, role.ID, codenames); err != nil {
			return fmt.Errorf("bootstrap role %s grants: %w", name, err)
		}
	}

	return nil
}
