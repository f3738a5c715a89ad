package workflow

import (
	"github.com/pingidentity/davincikit/capability"
)

// Config is the typed configuration a Workflow is built from and then
// frozen. Modules close over whatever extra config they need at
// construction time; Config only holds what the engine itself needs.
type Config struct {
	HTTP    capability.HTTP
	Logger  capability.Logger
	Modules []Module
}

// pipelines is the frozen set of ordered handler slices derived from
// Config.Modules at Workflow construction. Registration order
// establishes pipeline order, and pipelines never change after the
// Workflow is built.
type pipelines struct {
	init     []InitHandler
	next     []NextHandler
	response []ResponseHandler
	node     []NodeHandler
	success  []SuccessHandler
	signoff  []SignoffHandler
}

func buildPipelines(modules []Module) pipelines {
	var p pipelines
	for _, m := range modules {
		if h, ok := m.(InitHandler); ok {
			p.init = append(p.init, h)
		}
		if h, ok := m.(NextHandler); ok {
			p.next = append(p.next, h)
		}
		if h, ok := m.(ResponseHandler); ok {
			p.response = append(p.response, h)
		}
		if h, ok := m.(NodeHandler); ok {
			p.node = append(p.node, h)
		}
		if h, ok := m.(SuccessHandler); ok {
			p.success = append(p.success, h)
		}
		if h, ok := m.(SignoffHandler); ok {
			p.signoff = append(p.signoff, h)
		}
	}
	return p
}
