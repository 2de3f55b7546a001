package loom

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// recordingRenderer logs every commit hook so tests can assert phase
// ordering the same way the tree would hit a real platform.
type recordingRenderer struct {
	log []string
}

func (r *recordingRenderer) BeforeMutation(n *Node) {
	r.log = append(r.log, "before "+nodeLabel(n))
}

func (r *recordingRenderer) Mutate(n *Node, flags EffectFlags) {
	r.log = append(r.log, "mutate "+nodeLabel(n)+effectNames(flags))
}

func (r *recordingRenderer) AfterMutation(n *Node) {
	r.log = append(r.log, "after "+nodeLabel(n))
}

func nodeLabel(n *Node) string {
	if n.Key() != "" {
		return n.Kind() + "#" + n.Key()
	}
	return n.Kind()
}

func effectNames(f EffectFlags) string {
	s := ""
	if f&Placement != 0 {
		s += " placement"
	}
	if f&Update != 0 {
		s += " update"
	}
	if f&Deletion != 0 {
		s += " deletion"
	}
	return s
}

func mutations(log []string) []string {
	out := []string{}
	for _, line := range log {
		if strings.HasPrefix(line, "mutate ") {
			out = append(out, line)
		}
	}
	return out
}

func dumpTree(root *Root) []string {
	a := root.Arena()
	out := []string{}

	var walk func(id NodeID, depth int)
	walk = func(id NodeID, depth int) {
		for ; id != NilNode; id = a.Get(id).Sibling() {
			n := a.Get(id)
			out = append(out, strings.Repeat("  ", depth)+nodeLabel(n))
			walk(n.Child(), depth+1)
		}
	}
	walk(root.Current().Child(), 0)

	return out
}

func newRenderHarness() (*ManualHost, *Reconciler, *Root, *recordingRenderer) {
	h := NewManualHost(time.Unix(0, 0))
	s := NewScheduler(WithHost(h))
	r := &recordingRenderer{}
	rc := NewReconciler(s, r)
	return h, rc, rc.NewRoot(nil), r
}

// appendState builds a reducer payload that records its label on the
// node's state slice, making apply order observable.
func appendState(label string) func(prev any) any {
	return func(prev any) any {
		s, _ := prev.([]string)
		return append(s[:len(s):len(s)], label)
	}
}

func TestRenderMount(t *testing.T) {
	t.Run("commits placements children first", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		root.Render(El("app", nil,
			El("header", nil),
			El("body", nil,
				El("item", nil))), nil)
		h.Flush()

		assert.Equal(t, []string{
			"mutate header placement",
			"mutate item placement",
			"mutate body placement",
			"mutate app placement",
			"after header",
			"after item",
			"after body",
			"after app",
		}, r.log)

		assert.Equal(t, []string{
			"app",
			"  header",
			"  body",
			"    item",
		}, dumpTree(root))

		assert.Equal(t, RenderCommitted, root.State())
	})

	t.Run("render callback runs after the commit", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		committed := false
		root.Render(El("app", nil), func() {
			committed = len(mutations(r.log)) == 1
		})
		h.Flush()

		assert.True(t, committed)
	})
}

func TestRenderUpdate(t *testing.T) {
	t.Run("only the changed subtree takes effects", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		static := El("static", nil)
		root.Render(El("app", nil, static, El("dyn", map[string]any{"v": 1})), nil)
		h.Flush()
		r.log = nil

		root.Render(El("app", nil, static, El("dyn", map[string]any{"v": 2})), nil)
		h.Flush()

		assert.Equal(t, []string{
			"before dyn",
			"before app",
			"mutate dyn update",
			"mutate app update",
			"after dyn",
			"after app",
		}, r.log)
	})

	t.Run("identical root element bails out entirely", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		el := El("app", nil, El("child", nil))
		root.Render(el, nil)
		h.Flush()
		r.log = nil

		root.Render(el, nil)
		h.Flush()

		assert.Empty(t, r.log)
	})

	t.Run("removed children commit deletions", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		root.Render(El("app", nil, El("a", nil), El("b", nil)), nil)
		h.Flush()
		r.log = nil

		root.Render(El("app", nil, El("a", nil)), nil)
		h.Flush()

		assert.Equal(t, []string{
			"mutate a update",
			"mutate b deletion",
			"mutate app update",
		}, mutations(r.log))

		assert.Equal(t, []string{"app", "  a"}, dumpTree(root))
	})

	t.Run("deleting a bailed-out subtree keeps the tree reusable", func(t *testing.T) {
		h, _, root, _ := newRenderHarness()

		box := El("box", nil, El("item", nil))
		root.Render(El("app", nil, box, El("other", map[string]any{"v": 1})), nil)
		h.Flush()

		// same element pointer and nothing pending below: box bails out,
		// and its two buffers share one child chain
		root.Render(El("app", nil, box, El("other", map[string]any{"v": 2})), nil)
		h.Flush()

		root.Render(El("app", nil, El("other", map[string]any{"v": 3})), nil)
		h.Flush()
		assert.Equal(t, []string{"app", "  other"}, dumpTree(root))

		// the freed slots get reused; each new node must land in its own
		root.Render(El("app", nil,
			El("other", map[string]any{"v": 4}),
			El("extra", nil),
			El("extra2", nil)), nil)
		h.Flush()

		assert.Equal(t, []string{
			"app",
			"  other",
			"  extra",
			"  extra2",
		}, dumpTree(root))
	})

	t.Run("a duplicate key falls back to a fresh mount", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		k := El("item", nil).Keyed("k")
		root.Render(El("app", nil, k), nil)
		h.Flush()
		r.log = nil

		root.Render(El("app", nil, k, El("item", nil).Keyed("k")), nil)
		h.Flush()

		assert.Equal(t, []string{
			"mutate item#k placement",
			"mutate app update",
		}, mutations(r.log))
		assert.Equal(t, []string{
			"app",
			"  item#k",
			"  item#k",
		}, dumpTree(root))
	})

	t.Run("keyed children reorder as placements, not remounts", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		a := El("item", nil).Keyed("a")
		b := El("item", nil).Keyed("b")
		c := El("item", nil).Keyed("c")

		root.Render(El("app", nil, a, b, c), nil)
		h.Flush()
		r.log = nil

		root.Render(El("app", nil, c, a, b), nil)
		h.Flush()

		assert.Equal(t, []string{
			"mutate item#c placement",
			"mutate item#a placement",
			"mutate item#b placement",
			"mutate app update",
		}, mutations(r.log))

		assert.Equal(t, []string{
			"app",
			"  item#c",
			"  item#a",
			"  item#b",
		}, dumpTree(root))
	})
}

func TestNodeUpdates(t *testing.T) {
	t.Run("state change commits an update effect and callback", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		root.Render(El("box", nil), nil)
		h.Flush()
		r.log = nil

		a := root.Arena()
		box := a.Get(root.Current().Child())

		log := []string{}
		root.UpdateNode(box, map[string]any{"n": 1}, func() {
			cur := a.Get(root.Current().Child())
			state := cur.State().(map[string]any)
			log = append(log, "callback")
			assert.Equal(t, 1, state["n"])
		})
		h.Flush()

		assert.Equal(t, []string{
			"mutate box update",
			"after box",
		}, r.log)
		assert.Equal(t, []string{"callback"}, log)
	})

	t.Run("urgent update renders first, state replays in submission order", func(t *testing.T) {
		h, rc, root, r := newRenderHarness()
		s := rc.Scheduler()

		root.Render(El("box", nil), nil)
		h.Flush()
		r.log = nil

		a := root.Arena()
		box := a.Get(root.Current().Child())

		root.UpdateNode(box, appendState("low"), nil)
		s.RunWithPriority(UserBlocking, func() {
			root.UpdateNode(box, appendState("urgent"), nil)
		})
		h.Flush()

		// two commits: the urgent lane first, then the deferred one
		assert.Equal(t, []string{
			"mutate box update",
			"mutate box update",
		}, mutations(r.log))

		final := a.Get(root.Current().Child()).State()
		assert.Equal(t, []string{"low", "urgent"}, final)
	})

	t.Run("skipped idle update rebases onto later work", func(t *testing.T) {
		h, rc, root, _ := newRenderHarness()
		s := rc.Scheduler()

		root.Render(El("box", nil), nil)
		h.Flush()

		a := root.Arena()
		box := a.Get(root.Current().Child())

		var firstCommit []string
		root.UpdateNode(box, appendState("u1"), nil)
		s.RunWithPriority(Idle, func() {
			root.UpdateNode(box, appendState("u2"), nil)
		})
		root.UpdateNode(box, appendState("u3"), func() {
			firstCommit = a.Get(root.Current().Child()).State().([]string)
		})
		h.Flush()

		// the idle update was skipped on the first pass, then replayed in
		// submission order on the idle pass
		assert.Equal(t, []string{"u1", "u3"}, firstCommit)
		assert.Equal(t, []string{"u1", "u2", "u3"},
			a.Get(root.Current().Child()).State())
	})

	t.Run("force update re-renders without touching state", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		root.Render(El("box", nil), nil)
		h.Flush()
		r.log = nil

		a := root.Arena()
		box := a.Get(root.Current().Child())

		root.ForceUpdate(box, nil)
		h.Flush()

		assert.Equal(t, []string{"mutate box update"}, mutations(r.log))
		assert.Nil(t, a.Get(root.Current().Child()).State())
	})
}

func TestTimeSlicedRender(t *testing.T) {
	t.Run("pauses at the frame budget and resumes at the cursor", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		root.Render(El("app", nil, El("x", nil), El("y", nil)), nil)
		h.Flush()
		r.log = nil

		a := root.Arena()
		app := a.Get(root.Current().Child())
		x := a.Get(app.Child())
		y := a.Get(x.Sibling())

		root.UpdateNode(x, func(prev any) any {
			h.Advance(6 * time.Millisecond)
			return "x2"
		}, nil)
		root.UpdateNode(y, func(prev any) any {
			return "y2"
		}, nil)

		// the first frame spends its budget inside x's reducer and yields
		// before y; nothing commits yet
		h.RunNext()
		assert.Empty(t, r.log)
		assert.Equal(t, RenderInProgress, root.State())
		assert.Equal(t, 1, h.Pending())

		// the continuation resumes at y and commits both
		h.RunNext()
		assert.Equal(t, []string{
			"mutate x update",
			"mutate y update",
			"after x",
			"after y",
		}, r.log)

		assert.Equal(t, "x2", a.Get(a.Get(root.Current().Child()).Child()).State())
	})
}

func TestRenderErrors(t *testing.T) {
	t.Run("panic discards the pass, retries sync, then reports", func(t *testing.T) {
		h, rc, root, r := newRenderHarness()

		errs := []any{}
		rc.OnRenderError(func(v any) {
			errs = append(errs, v)
		})

		root.Render(El("app", nil, El("x", nil)), nil)
		h.Flush()
		r.log = nil

		a := root.Arena()
		app := a.Get(root.Current().Child())
		x := a.Get(app.Child())

		root.UpdateNode(x, func(prev any) any {
			panic("boom")
		}, nil)
		h.Flush()

		// concurrent pass, then the forced sync retry
		assert.Equal(t, []any{"boom", "boom"}, errs)
		assert.Empty(t, mutations(r.log))
		assert.Equal(t, RenderIdle, root.State())

		// the committed tree is untouched and still usable
		assert.Equal(t, []string{"app", "  x"}, dumpTree(root))
		assert.Nil(t, a.Get(app.Child()).State())
	})

	t.Run("panic without handlers reaches the host caller", func(t *testing.T) {
		h, _, root, r := newRenderHarness()

		root.Render(El("app", nil, El("x", nil)), nil)
		h.Flush()
		r.log = nil

		a := root.Arena()
		x := a.Get(a.Get(root.Current().Child()).Child())

		root.UpdateNode(x, func(prev any) any {
			panic("boom")
		}, nil)
		assert.PanicsWithValue(t, "boom", h.Flush)

		// the pass was discarded before the panic escaped
		assert.Empty(t, mutations(r.log))
		assert.Equal(t, RenderIdle, root.State())
		assert.Equal(t, []string{"app", "  x"}, dumpTree(root))
	})
}

func TestRunSync(t *testing.T) {
	t.Run("flushes the render before returning", func(t *testing.T) {
		h, rc, root, r := newRenderHarness()

		rc.RunSync(func() {
			root.Render(El("app", nil), nil)
		}, root)

		assert.Equal(t, []string{"mutate app placement"}, mutations(r.log))
		assert.Equal(t, []string{"app"}, dumpTree(root))

		// the task scheduled before the sync flush was cancelled; draining
		// the host must not commit again
		h.Flush()
		assert.Equal(t, []string{"mutate app placement"}, mutations(r.log))
	})
}
