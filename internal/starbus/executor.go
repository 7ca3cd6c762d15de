// internal/starbus/executor.go
package starbus

import (
	"strings"

	"github.com/starbus/coordinator/internal/git"
)

// Executor is the opaque collaborator that actually runs a workspace.
// The engine only invokes Start and reacts to its error shape (a
// substring match on "already exists" triggers the single-retry rule in
// AutoStartWorkspace).
type Executor interface {
	// Start launches profile inside workspace. Implementations report a
	// name collision by returning an error whose message contains
	// "already exists".
	Start(workspaceID, profile string) error
}

// BranchName derives a workspace branch name from an attempt id and a
// task title. Delegates to git.BranchName, which was written for task
// IDs; an attempt ID is an equally valid first component.
func BranchName(attemptID, title string) string {
	return git.BranchName(attemptID, title)
}

// isAlreadyExistsError reports whether err's message contains the
// executor's substring marker for a name collision.
func isAlreadyExistsError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}
