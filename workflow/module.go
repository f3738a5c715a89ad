// Package workflow implements the pluggable orchestration engine: a
// single-consumer actor that owns the active node, runs a
// module's six handler pipelines around every server exchange, and
// serializes all work so concurrent callers observe FIFO ordering.
package workflow

import (
	"context"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/node"
)

// Module is a unit of workflow configuration: a bundle of optional
// handler callbacks plus whatever config block it closed over at
// construction. Registration order establishes pipeline
// order; pipelines are immutable once the Workflow is built.
type Module interface {
	// ID uniquely identifies the module within a Workflow.
	ID() string
}

// InitHandler runs once before the first request; returning a non-nil
// FailureNode aborts startup.
type InitHandler interface {
	Module
	OnInit(ctx context.Context) (*node.FailureNode, error)
}

// NextHandler mutates the outgoing request before it is sent.
type NextHandler interface {
	Module
	OnNext(ctx context.Context, current node.Node, req *capability.Request) error
}

// ResponseHandler observes every response as it arrives, before
// classification (e.g. to capture cookies).
type ResponseHandler interface {
	Module
	OnResponse(ctx context.Context, resp *capability.Response) error
}

// NodeHandler transforms the driver's raw classification of a
// response, e.g. promoting an error payload with a known code into an
// ErrorNode that preserves the originating ContinueNode.
type NodeHandler interface {
	Module
	OnNode(ctx context.Context, raw node.Node) (node.Node, error)
}

// SuccessHandler finalizes a SuccessNode (e.g. performs the OIDC token
// exchange) before it reaches the caller.
type SuccessHandler interface {
	Module
	OnSuccess(ctx context.Context, success *node.SuccessNode) (*node.SuccessNode, error)
}

// SignoffHandler builds the sign-off request issued when a caller
// abandons an in-progress flow.
type SignoffHandler interface {
	Module
	OnSignoff(ctx context.Context, req *capability.Request) (*capability.Request, error)
}
