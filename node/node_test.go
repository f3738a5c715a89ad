package node

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingidentity/davincikit/collector"
)

func TestContinueNode_NextWithoutBindingErrors(t *testing.T) {
	n := &ContinueNode{ID: "step-1"}
	_, err := n.Next(context.Background(), "submit")
	assert.ErrorIs(t, err, ErrNoNextBinding)
}

func TestContinueNode_BindThenNextCallsBoundFunc(t *testing.T) {
	n := &ContinueNode{ID: "step-1"}
	var gotActionKey string
	n.Bind(func(ctx context.Context, actionKey string) (Node, error) {
		gotActionKey = actionKey
		return &SuccessNode{Session: "sess-1"}, nil
	})

	result, err := n.Next(context.Background(), "submit")
	require.NoError(t, err)
	assert.Equal(t, "submit", gotActionKey)
	success, ok := result.(*SuccessNode)
	require.True(t, ok)
	assert.Equal(t, "sess-1", success.Session)
}

func newTextCollector(key string) collector.Collector {
	reg := collector.NewRegistry()
	c, ok := reg.Build(collector.RawField{Type: "TEXT", Key: key})
	if !ok {
		panic("TEXT must be registered")
	}
	return c
}

func TestContinueNode_CollectorLooksUpByKey(t *testing.T) {
	n := &ContinueNode{Collectors: []collector.Collector{newTextCollector("username"), newTextCollector("email")}}

	c, ok := n.Collector("email")
	require.True(t, ok)
	assert.Equal(t, "email", c.Key())

	_, ok = n.Collector("missing")
	assert.False(t, ok)
}

func TestContinueNode_ClearPasswordsOnlyTouchesPasswordCollectors(t *testing.T) {
	reg := collector.NewRegistry()
	pwCollector, ok := reg.Build(collector.RawField{Type: "PASSWORD", Key: "password"})
	require.True(t, ok)
	pw := pwCollector.(*collector.Password)
	pw.Value = "secret"

	text := newTextCollector("username").(*collector.Text)
	text.Value = "ada"

	n := &ContinueNode{Collectors: []collector.Collector{text, pw}}
	n.ClearPasswords()

	assert.Empty(t, pw.Value)
	assert.Equal(t, "ada", text.Value, "ClearPasswords must not touch non-password collectors")
}

func TestNodeVariants_SatisfyNodeInterface(t *testing.T) {
	var n Node
	n = &ContinueNode{}
	assert.NotNil(t, n)
	n = &SuccessNode{}
	assert.NotNil(t, n)
	n = &ErrorNode{}
	assert.NotNil(t, n)
	n = &FailureNode{}
	assert.NotNil(t, n)
}
