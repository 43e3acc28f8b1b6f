package testhelpers

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/atlasform-io/atlasform-engine/pkg/database"
)

// ScopedContext returns a context carrying a workspace-scoped database
// connection, the way the tenant middleware does for real requests. The
// scope is released when the test finishes.
func ScopedContext(t *testing.T, db *database.DB, workspaceID uuid.UUID) context.Context {
	t.Helper()

	scope, err := db.WithWorkspace(context.Background(), workspaceID)
	if err != nil {
		t.Fatalf("Failed to acquire tenant scope: %v", err)
	}
	t.Cleanup(scope.Close)

	return database.SetTenantScope(context.Background(), scope)
}
