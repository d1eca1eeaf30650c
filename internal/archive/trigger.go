package archive

import (
	"fmt"

	"attic/internal/classify"
)

// Token is an opaque value threaded through a trigger purely to order
// execution in the host's workflow graph. It is never inspected.
type Token any

// TriggerResult carries the pass-through token and a one-line status
// suitable for display in the host.
type TriggerResult struct {
	Token  Token
	Status string
}

// Trigger runs an archive pass on behalf of a workflow node. When
// enabled is false nothing is touched and a disabled status is
// returned, letting the node sit inert in a graph.
func (e *Engine) Trigger(token Token, root string, rules classify.Rules, enabled bool) TriggerResult {
	if !enabled {
		return TriggerResult{Token: token, Status: "Archiving is disabled."}
	}

	outcome, err := e.Run(root, rules)
	if err != nil {
		return TriggerResult{Token: token, Status: fmt.Sprintf("Archive failed: %v", err)}
	}

	return TriggerResult{Token: token, Status: FormatStatus(outcome)}
}

// FormatStatus renders an outcome as the single human-readable line
// shown by the trigger node.
func FormatStatus(o Outcome) string {
	return fmt.Sprintf(
		"Archive complete. Moved: %d, Skipped: %d, Errors: %d, Empty dirs removed: %d. Location: %s",
		o.Moved, o.Skipped, o.Errors, o.RemovedDirs, o.ArchiveLocation)
}
