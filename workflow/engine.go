package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/pingidentity/davincikit/capability"
	"github.com/pingidentity/davincikit/node"
)

// Engine is the workflow actor: it owns the active
// node, runs a Driver's requests through the frozen handler pipelines,
// and serializes all work through a single-consumer mailbox so
// concurrent Start/Next calls observe FIFO ordering and no caller ever
// observes a half-mutated node.
type Engine struct {
	driver    Driver
	http      capability.HTTP
	logger    capability.Logger
	pipelines pipelines

	mailbox   chan job
	done      chan struct{}
	closeOnce sync.Once
	initted   bool
}

// ErrClosed is returned by Start/Next/SignOff after Close.
var ErrClosed = errors.New("workflow: engine closed")

type job struct {
	ctx    context.Context
	run    func(ctx context.Context) (node.Node, error)
	result chan jobResult
}

type jobResult struct {
	n   node.Node
	err error
}

// New builds an Engine around driver, freezing cfg.Modules into
// pipelines and starting the mailbox loop. The Engine is ready to
// accept Start as soon as New returns.
func New(driver Driver, cfg Config) *Engine {
	e := &Engine{
		driver:    driver,
		http:      cfg.HTTP,
		logger:    cfg.Logger,
		pipelines: buildPipelines(cfg.Modules),
		mailbox:   make(chan job),
		done:      make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Engine) loop() {
	for {
		select {
		case j := <-e.mailbox:
			n, err := j.run(j.ctx)
			j.result <- jobResult{n: n, err: err}
		case <-e.done:
			return
		}
	}
}

// Close stops the mailbox loop. In-flight work completes; subsequent
// calls fail with ErrClosed. Close is idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// enqueue submits fn to the mailbox and waits for its result or for ctx
// to be cancelled first. Cancellation never corrupts engine state: fn
// itself observes ctx and aborts its in-flight HTTP call, returning an
// error that is never committed as the engine's current node.
func (e *Engine) enqueue(ctx context.Context, fn func(ctx context.Context) (node.Node, error)) (node.Node, error) {
	resultCh := make(chan jobResult, 1)
	select {
	case e.mailbox <- job{ctx: ctx, run: fn, result: resultCh}:
	case <-e.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-resultCh:
		return r.n, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start is the first of the two public entry points: it
// runs init handlers, issues the driver's initial request, and
// classifies the response.
func (e *Engine) Start(ctx context.Context) (node.Node, error) {
	return e.enqueue(ctx, e.doStart)
}

func (e *Engine) doStart(ctx context.Context) (node.Node, error) {
	if !e.initted {
		var initErrs *multierror.Error
		for _, h := range e.pipelines.init {
			failure, err := h.OnInit(ctx)
			if err != nil {
				initErrs = multierror.Append(initErrs, fmt.Errorf("module %s: %w", h.ID(), err))
				continue
			}
			if failure != nil {
				return failure, nil
			}
		}
		if initErrs != nil {
			return &node.FailureNode{Cause: initErrs}, nil
		}
		e.initted = true
	}

	req, err := e.driver.InitialRequest(ctx)
	if err != nil {
		return &node.FailureNode{Cause: err}, nil
	}
	return e.exchange(ctx, nil, req)
}

// makeNext binds a freshly parsed ContinueNode to the engine's
// serialized submission path, so calling (*node.ContinueNode).Next
// routes back through this same mailbox.
func (e *Engine) makeNext(origin *node.ContinueNode) node.NextFunc {
	return func(ctx context.Context, actionKey string) (node.Node, error) {
		return e.enqueue(ctx, func(ctx context.Context) (node.Node, error) {
			req, err := e.driver.SubmitRequest(ctx, origin, actionKey)
			if err != nil {
				return &node.FailureNode{Cause: err}, nil
			}
			return e.exchange(ctx, origin, req)
		})
	}
}

// exchange runs the next/response/node/success pipelines around one
// HTTP round-trip. origin is nil on the very first exchange of a flow.
func (e *Engine) exchange(ctx context.Context, origin *node.ContinueNode, req capability.Request) (node.Node, error) {
	var current node.Node
	if origin != nil {
		current = origin
	}
	for _, h := range e.pipelines.next {
		if err := h.OnNext(ctx, current, &req); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return &node.FailureNode{Cause: err}, nil
		}
	}

	resp, err := e.http.Send(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &node.FailureNode{Cause: err}, nil
	}

	for _, h := range e.pipelines.response {
		if err := h.OnResponse(ctx, &resp); err != nil {
			return &node.FailureNode{Cause: err}, nil
		}
	}

	raw, err := e.driver.ParseResponse(ctx, resp, origin)
	if err != nil {
		return &node.FailureNode{Cause: err}, nil
	}

	for _, h := range e.pipelines.node {
		raw, err = h.OnNode(ctx, raw)
		if err != nil {
			return &node.FailureNode{Cause: err}, nil
		}
	}

	switch n := raw.(type) {
	case *node.ContinueNode:
		n.Bind(e.makeNext(n))
	case *node.SuccessNode:
		for _, h := range e.pipelines.success {
			n, err = h.OnSuccess(ctx, n)
			if err != nil {
				return &node.FailureNode{Cause: err}, nil
			}
		}
		raw = n
	case *node.ErrorNode:
		if n.ContinueNode != nil {
			n.ContinueNode.ClearPasswords()
			n.ContinueNode.Bind(e.makeNext(n.ContinueNode))
		}
	}

	return raw, nil
}

// SignOff runs the signoff pipeline and sends the resulting request,
// if any module contributed one. Used when the caller abandons an
// in-progress flow and wants best-effort server-side cleanup.
func (e *Engine) SignOff(ctx context.Context) error {
	_, err := e.enqueue(ctx, func(ctx context.Context) (node.Node, error) {
		if len(e.pipelines.signoff) == 0 {
			return nil, nil
		}
		req := capability.Request{}
		for _, h := range e.pipelines.signoff {
			r, err := h.OnSignoff(ctx, &req)
			if err != nil {
				return nil, err
			}
			req = *r
		}
		if req.Method == "" {
			return nil, nil
		}
		_, err := e.http.Send(ctx, req)
		return nil, err
	})
	return err
}
