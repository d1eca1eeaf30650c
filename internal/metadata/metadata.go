// Package metadata moves generation metadata between image containers:
// it extracts the workflow/prompt documents a generator stored in PNG
// text chunks and re-embeds them into JPEG or WebP output, degrading
// gracefully when the target container cannot hold the full payload.
package metadata

// Payload is the textual generation metadata carried by a source image.
// Both documents are JSON-shaped text blobs; either may be absent.
type Payload struct {
	Workflow string
	Prompt   string
}

func (p Payload) Empty() bool {
	return p.Workflow == "" && p.Prompt == ""
}

// Tier records how much of the payload survived embedding.
type Tier int

const (
	TierNone Tier = iota
	TierWorkflowOnly
	TierFull
)

func (t Tier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierWorkflowOnly:
		return "workflow_only"
	default:
		return "none"
	}
}
