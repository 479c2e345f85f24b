package auth

import (
	"fmt"
	"markwiki/internal/logger"

	"github.com/casbin/casbin/v2"
)

// Roles known to the policy set.
const (
	RoleAnonymous = "anonymous"
	RoleEditor    = "editor"
)

// DefaultPolicies are the write routes a signed-in editor may use. Reading
// pages and signing in are not policy checked.
var DefaultPolicies = [][]string{
	{RoleEditor, "/new-page", "GET"},
	{RoleEditor, "/edit", "GET"},
	{RoleEditor, "/add-page", "POST"},
	{RoleEditor, "/delete-page", "POST"},
	{RoleEditor, "/delete-attachment", "POST"},
	{RoleEditor, "/logout", "POST"},
}

// SeedDefaultPolicies ensures that the application has a baseline set of authorization rules.
// It checks if each default policy exists before adding it, making the operation idempotent
// and safe to run on every application start.
func SeedDefaultPolicies(e casbin.IEnforcer, log logger.Logger) error {
	log.Info("Seeding default authorization policies...")

	for _, p := range DefaultPolicies {
		has, err := e.HasPolicy(p)
		if err != nil {
			return fmt.Errorf("failed to check policy %v: %w", p, err)
		}
		if has {
			continue
		}
		if _, err := e.AddPolicy(p); err != nil {
			log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			return fmt.Errorf("failed to add policy %v: %w", p, err)
		}
	}

	// Editors keep whatever anonymous visitors are granted.
	has, err := e.HasRoleForUser(RoleEditor, RoleAnonymous)
	if err != nil {
		return fmt.Errorf("failed to check role %s: %w", RoleEditor, err)
	}
	if !has {
		if _, err := e.AddRoleForUser(RoleEditor, RoleAnonymous); err != nil {
			log.Error(err, "Failed to add role 'editor' -> 'anonymous'")
			return fmt.Errorf("failed to add role %s: %w", RoleEditor, err)
		}
	}
	log.Info("Policy seeding complete.")
	return nil
}
