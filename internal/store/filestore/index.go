package filestore

import (
	"slices"
	"sort"

	"github.com/colonyops/kash/internal/core/catalog"
	"github.com/colonyops/kash/internal/core/item"
	"github.com/colonyops/kash/pkg/kv"
)

// index is the in-memory view of the workspace: entries by path, paths by
// fingerprint and canonical URL, and recorded operation outputs.
type index struct {
	entries *kv.Store[string, catalog.Entry]
	byFP    *kv.Multi[string, string]
	byURL   *kv.Multi[string, string]
	ops     *kv.Store[string, []catalog.Output]
}

func newIndex() *index {
	return &index{
		entries: kv.New[string, catalog.Entry](),
		byFP:    kv.NewMulti[string, string](),
		byURL:   kv.NewMulti[string, string](),
		ops:     kv.New[string, []catalog.Output](),
	}
}

func (x *index) get(path string) (catalog.Entry, bool) {
	return x.entries.Get(path)
}

func (x *index) put(e catalog.Entry) {
	x.remove(e.Path)
	x.entries.Set(e.Path, e)
	x.byFP.Add(e.Fingerprint, e.Path)
	if e.URL != "" {
		x.byURL.Add(e.URL, e.Path)
	}
}

func (x *index) remove(path string) (catalog.Entry, bool) {
	old, ok := x.entries.Get(path)
	if !ok {
		return catalog.Entry{}, false
	}
	x.entries.Delete(path)
	x.byFP.Remove(old.Fingerprint, path)
	if old.URL != "" {
		x.byURL.Remove(old.URL, path)
	}
	return old, true
}

func (x *index) pathsForFingerprint(fp string) []string {
	return x.byFP.Get(fp)
}

func (x *index) pathsForURL(u string) []string {
	return x.byURL.Get(item.CanonicalizeURL(u))
}

// addOutput records o, replacing any output with the same number.
func (x *index) addOutput(o catalog.Output) {
	x.ops.Update(o.OpFingerprint, func(cur []catalog.Output, _ bool) ([]catalog.Output, bool) {
		next := slices.DeleteFunc(slices.Clone(cur), func(c catalog.Output) bool {
			return c.OutputNum == o.OutputNum
		})
		next = append(next, o)
		sort.Slice(next, func(i, j int) bool { return next[i].OutputNum < next[j].OutputNum })
		return next, true
	})
}

func (x *index) hasOutput(opFP string, num int) bool {
	outs, _ := x.ops.Get(opFP)
	return slices.ContainsFunc(outs, func(o catalog.Output) bool { return o.OutputNum == num })
}

func (x *index) outputs(opFP string) []catalog.Output {
	outs, _ := x.ops.Get(opFP)
	return slices.Clone(outs)
}

func (x *index) dropOperation(opFP string) {
	x.ops.Delete(opFP)
}

// dropOutputsFor removes every recorded output that points at path.
func (x *index) dropOutputsFor(path string) {
	for _, op := range x.ops.Keys() {
		x.ops.Update(op, func(cur []catalog.Output, ok bool) ([]catalog.Output, bool) {
			next := slices.DeleteFunc(slices.Clone(cur), func(c catalog.Output) bool { return c.Path == path })
			return next, len(next) > 0
		})
	}
}

func (x *index) all() []catalog.Entry {
	out := x.entries.Values()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (x *index) operationCount() int {
	return x.ops.Len()
}

func (x *index) reset() {
	x.entries.Clear()
	x.byFP.Clear()
	x.byURL.Clear()
	x.ops.Clear()
}
