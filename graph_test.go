package camflow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/visiona/camflow"
)

type stubNode struct {
	name     string
	provides []camflow.Field
	calls    int
	fail     error
}

func (n *stubNode) Name() string              { return n.name }
func (n *stubNode) Provides() []camflow.Field { return n.provides }
func (n *stubNode) Process(pkt *camflow.FramePacket) error {
	n.calls++
	return n.fail
}

type stubSink struct {
	name     string
	requests []camflow.Field
	packets  []*camflow.FramePacket
	fail     error
}

func (s *stubSink) Name() string                { return s.name }
func (s *stubSink) Requests() []camflow.Field   { return s.requests }
func (s *stubSink) Close() error                { return nil }
func (s *stubSink) Consume(pkt *camflow.FramePacket) error {
	s.packets = append(s.packets, pkt)
	return s.fail
}

// TestCompileOrdersDependenciesFirst validates the cached execution
// order: a node always runs after everything it depends on, with
// insertion order breaking ties.
func TestCompileOrdersDependenciesFirst(t *testing.T) {
	a := &stubNode{name: "a", provides: []camflow.Field{camflow.FieldDetections}}
	b := &stubNode{name: "b", provides: []camflow.Field{camflow.FieldRegions}}
	c := &stubNode{name: "c", provides: []camflow.Field{camflow.FieldOCR}}

	g := camflow.NewGraph()
	require.NoError(t, g.Add(c))
	require.NoError(t, g.Add(b))
	require.NoError(t, g.Add(a))
	g.Connect("a", "b")
	g.Connect("b", "c")
	g.Attach(&stubSink{name: "out", requests: []camflow.Field{camflow.FieldOCR}})

	plan, err := g.Compile()
	require.NoError(t, err)

	var names []string
	for _, n := range plan.Order() {
		names = append(names, n.Name())
	}
	require.Equal(t, []string{"a", "b", "c"}, names)
}

// TestCompilePrunesUnrequestedBranches validates lazy scheduling: nodes
// whose output no sink requests (directly or transitively) are excluded
// from the plan.
func TestCompilePrunesUnrequestedBranches(t *testing.T) {
	detect := &stubNode{name: "detect", provides: []camflow.Field{camflow.FieldDetections}}
	draw := &stubNode{name: "draw", provides: []camflow.Field{camflow.FieldAnnotated}}
	motion := &stubNode{name: "motion", provides: []camflow.Field{camflow.FieldMotion}}

	g := camflow.NewGraph()
	require.NoError(t, g.Add(motion))
	require.NoError(t, g.Add(detect))
	require.NoError(t, g.Add(draw))
	g.Connect("detect", "draw")
	g.Attach(&stubSink{name: "out", requests: []camflow.Field{camflow.FieldDetections}})

	plan, err := g.Compile()
	require.NoError(t, err)

	require.Len(t, plan.Order(), 1)
	require.Equal(t, "detect", plan.Order()[0].Name())
}

// TestCompileRejectsAnyCycle validates that compilation fails on a cycle
// even when no sink requests anything on the cyclic path.
func TestCompileRejectsAnyCycle(t *testing.T) {
	a := &stubNode{name: "a", provides: []camflow.Field{camflow.FieldRegions}}
	b := &stubNode{name: "b", provides: []camflow.Field{camflow.FieldOCR}}
	motion := &stubNode{name: "motion", provides: []camflow.Field{camflow.FieldMotion}}

	g := camflow.NewGraph()
	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))
	require.NoError(t, g.Add(motion))
	g.Connect("a", "b")
	g.Connect("b", "a")
	g.Attach(&stubSink{name: "out", requests: []camflow.Field{camflow.FieldMotion}})

	_, err := g.Compile()
	var cycleErr *camflow.CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.ElementsMatch(t, []string{"a", "b"}, cycleErr.Nodes)
}

// TestCompileRejectsUnknownField validates that a sink requesting a field
// no node provides fails at compile time, naming sink and field.
func TestCompileRejectsUnknownField(t *testing.T) {
	g := camflow.NewGraph()
	require.NoError(t, g.Add(&stubNode{name: "motion", provides: []camflow.Field{camflow.FieldMotion}}))
	g.Attach(&stubSink{name: "out", requests: []camflow.Field{camflow.FieldOCR}})

	_, err := g.Compile()
	var fieldErr *camflow.UnknownFieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "out", fieldErr.Sink)
	require.Equal(t, camflow.FieldOCR, fieldErr.Field)
}

// TestCompileRejectsUnknownEdgeNode validates edge validation.
func TestCompileRejectsUnknownEdgeNode(t *testing.T) {
	g := camflow.NewGraph()
	require.NoError(t, g.Add(&stubNode{name: "a", provides: []camflow.Field{camflow.FieldMotion}}))
	g.Connect("a", "ghost")
	g.Attach(&stubSink{name: "out", requests: []camflow.Field{camflow.FieldMotion}})

	_, err := g.Compile()
	require.Error(t, err)
	require.Contains(t, err.Error(), "ghost")
}

// TestAddRejectsDuplicateName validates node name uniqueness.
func TestAddRejectsDuplicateName(t *testing.T) {
	g := camflow.NewGraph()
	require.NoError(t, g.Add(&stubNode{name: "a"}))
	require.Error(t, g.Add(&stubNode{name: "a"}))
}

// TestImageFieldNeedsNoProvider validates that the raw image is treated
// as intrinsic: a sink consuming only the image compiles to an empty
// execution order.
func TestImageFieldNeedsNoProvider(t *testing.T) {
	g := camflow.NewGraph()
	g.Attach(&stubSink{name: "out", requests: []camflow.Field{camflow.FieldImage}})

	plan, err := g.Compile()
	require.NoError(t, err)
	require.Empty(t, plan.Order())
	require.Len(t, plan.Sinks(), 1)
}

var errBoom = errors.New("boom")
