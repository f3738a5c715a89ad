package workflow

import (
	"context"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/node"
)

// Driver is the flow-protocol-specific half of a Workflow: it knows how
// to build the initial and follow-up requests and how to classify a raw
// response into a Node. The engine owns scheduling,
// pipelines and serialization; the driver owns wire format.
type Driver interface {
	// InitialRequest builds the first outgoing request of a flow.
	InitialRequest(ctx context.Context) (capability.Request, error)
	// SubmitRequest builds the follow-up request for current,
	// serializing its collectors and the activated actionKey.
	SubmitRequest(ctx context.Context, current *node.ContinueNode, actionKey string) (capability.Request, error)
	// ParseResponse classifies resp into exactly one Node variant.
	// origin is the ContinueNode that produced this request, if any
	// (nil for the very first response of a flow); it becomes
	// ErrorNode.ContinueNode when the response is recoverable.
	ParseResponse(ctx context.Context, resp capability.Response, origin *node.ContinueNode) (node.Node, error)
}
