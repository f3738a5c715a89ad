// Package node defines the closed set of flow-step variants the
// workflow engine surfaces to the embedding application: ContinueNode,
// SuccessNode, ErrorNode and FailureNode. Exactly one variant
// is produced per server response; the package never synthesizes two
// variants for the same response.
package node

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pingidentity/davincikit/collector"
)

// ErrNoNextBinding is returned by ContinueNode.Next when called on a
// node that was never bound to a driver (e.g. constructed by hand in a
// test without going through a Workflow).
var ErrNoNextBinding = errors.New("davincikit: continue node has no bound driver")

// Node is the closed, tagged variant the workflow engine returns after
// every server exchange.
type Node interface {
	isNode()
}

// NextFunc submits the collectors currently bound to a ContinueNode.
// actionKey identifies which Submit/FlowLink collector was activated.
type NextFunc func(ctx context.Context, actionKey string) (Node, error)

// ContinueNode represents one in-progress step of a flow: a set of
// bound collectors the application must populate before calling Next.
type ContinueNode struct {
	ID          string
	Name        string
	Description string
	Category    string
	Input       json.RawMessage
	Collectors  []collector.Collector
	Actions     []string

	next NextFunc
}

// NewContinueNode builds a ContinueNode bound to a driver-supplied next
// function. Only the flow driver (package davinci) is expected to call
// this; the engine owns the node for its entire lifetime thereafter.
func NewContinueNode(id, name, description, category string, input json.RawMessage, collectors []collector.Collector, actions []string, next NextFunc) *ContinueNode {
	return &ContinueNode{
		ID:          id,
		Name:        name,
		Description: description,
		Category:    category,
		Input:       input,
		Collectors:  collectors,
		Actions:     actions,
		next:        next,
	}
}

func (*ContinueNode) isNode() {}

// Bind attaches the driver/engine-supplied submission function. The
// flow driver constructs ContinueNodes with no binding (it has no
// access to the engine's serialized mailbox); the engine binds each
// parsed ContinueNode to itself before handing it to the caller.
func (n *ContinueNode) Bind(next NextFunc) {
	n.next = next
}

// Next submits the currently collected values. The ContinueNode is
// consumed by this call: callers must not reuse it except when it is
// handed back as ErrorNode.ContinueNode, in which case it is the very
// node being resubmitted.
func (n *ContinueNode) Next(ctx context.Context, actionKey string) (Node, error) {
	if n.next == nil {
		return nil, ErrNoNextBinding
	}
	return n.next(ctx, actionKey)
}

// Collector returns the collector with the given key, if present.
func (n *ContinueNode) Collector(key string) (collector.Collector, bool) {
	for _, c := range n.Collectors {
		if c.Key() == key {
			return c, true
		}
	}
	return nil, false
}

// ClearPasswords clears every password collector bound to this node.
// Called by the engine whenever a submission against this node returns
// an ErrorNode.
func (n *ContinueNode) ClearPasswords() {
	for _, c := range n.Collectors {
		if pc, ok := c.(*collector.Password); ok {
			pc.Clear()
		}
	}
}

// SuccessNode is the terminal node produced when a flow completes.
type SuccessNode struct {
	Input   json.RawMessage
	Session string
}

func (*SuccessNode) isNode() {}

// ErrorNode is a recoverable terminal-looking node: the originating
// ContinueNode is reused for another submission attempt.
type ErrorNode struct {
	Input        json.RawMessage
	Message      string
	Details      []ErrorDetail
	ContinueNode *ContinueNode
	StatusCode   int
}

func (*ErrorNode) isNode() {}

// ErrorDetail is one structured error entry parsed from a server error
// body.
type ErrorDetail struct {
	Code       string
	Target     string
	Message    string
	InnerError map[string]string
}

// FailureNode is the unrecoverable terminal node.
type FailureNode struct {
	Cause error
}

func (*FailureNode) isNode() {}
