// Package xmltree is the typed access layer over the raw PAN-OS XML
// document. It wraps beevik/etree with the primitives every higher layer
// uses (find, clone, create-with-parents, merge) plus a structural diff
// and a TTL'd lookup cache keyed by root identity.
//
// All mutations go through this package so the lookup cache stays honest:
// every write invalidates the cached lookups for the mutated tree.
package xmltree

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/util"
)

// Tree owns one parsed configuration document and its lookup cache.
// A Tree is not safe for concurrent use; callers run one goroutine per
// tree (parallelism across independent trees is fine).
type Tree struct {
	doc   *etree.Document
	cache *lookupCache
}

// New wraps an existing document. The document must have a root element.
func New(doc *etree.Document) (*Tree, error) {
	if doc == nil || doc.Root() == nil {
		return nil, fmt.Errorf("%w: document has no root element", util.ErrParse)
	}
	return &Tree{doc: doc, cache: newLookupCache(defaultCacheSize, defaultCacheTTL)}, nil
}

// NewWithCache wraps a document with explicit cache sizing.
func NewWithCache(doc *etree.Document, size int, ttl time.Duration) (*Tree, error) {
	t, err := New(doc)
	if err != nil {
		return nil, err
	}
	t.cache = newLookupCache(size, ttl)
	return t, nil
}

// Parse builds a Tree from raw XML.
func Parse(data []byte) (*Tree, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrParse, err)
	}
	return New(doc)
}

// Document returns the underlying document.
func (t *Tree) Document() *etree.Document { return t.doc }

// Root returns the document's root element.
func (t *Tree) Root() *etree.Element { return t.doc.Root() }

// compile maps a path string to an etree path, translating compile
// failures into the engine's InvalidXPath error.
func compile(xpath string) (etree.Path, error) {
	p, err := etree.CompilePath(xpath)
	if err != nil {
		return etree.Path{}, &util.XPathError{XPath: xpath, Reason: err.Error()}
	}
	return p, nil
}

// FindOne returns the first element matching xpath, or nil if none match.
func (t *Tree) FindOne(xpath string) (*etree.Element, error) {
	els, err := t.FindMany(xpath)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	return els[0], nil
}

// FindMany returns all elements matching xpath. Results for static paths
// are cached until the tree is mutated or the entry expires.
func (t *Tree) FindMany(xpath string) ([]*etree.Element, error) {
	root := t.Root()
	if cached, ok := t.cache.get(xpath, root); ok {
		return cached, nil
	}
	p, err := compile(xpath)
	if err != nil {
		return nil, err
	}
	els := t.doc.FindElementsPath(p)
	t.cache.put(xpath, root, els)
	return els, nil
}

// Exists reports whether xpath matches at least one element.
func (t *Tree) Exists(xpath string) (bool, error) {
	el, err := t.FindOne(xpath)
	if err != nil {
		return false, err
	}
	return el != nil, nil
}

// TextOf returns the text of the first element matching xpath, or "" when
// the path does not resolve.
func (t *Tree) TextOf(xpath string) (string, error) {
	el, err := t.FindOne(xpath)
	if err != nil || el == nil {
		return "", err
	}
	return el.Text(), nil
}

// AttrOf returns the named attribute of the first element matching xpath.
func (t *Tree) AttrOf(xpath, attr string) (string, error) {
	el, err := t.FindOne(xpath)
	if err != nil || el == nil {
		return "", err
	}
	return el.SelectAttrValue(attr, ""), nil
}

// Invalidate drops cached lookups for this tree. Called by every mutator
// in this package; exposed for callers that mutate elements directly.
func (t *Tree) Invalidate() {
	t.cache.invalidate(t.Root())
}

// CreateChild appends a new child element with the given tag under parent
// and returns it.
func (t *Tree) CreateChild(parent *etree.Element, tag string) *etree.Element {
	child := parent.CreateElement(tag)
	t.Invalidate()
	return child
}

// SetText replaces the text content of el.
func (t *Tree) SetText(el *etree.Element, text string) {
	el.SetText(text)
	t.Invalidate()
}

// Attach appends el (detaching it from any previous parent) under parent.
func (t *Tree) Attach(parent, el *etree.Element) {
	parent.AddChild(el)
	t.Invalidate()
}

// AttachAt inserts el at the given token index under parent.
func (t *Tree) AttachAt(parent *etree.Element, index int, el *etree.Element) {
	parent.InsertChildAt(index, el)
	t.Invalidate()
}

// Delete removes el from its parent. Removing an already-detached element
// is reported as an internal error: the engine never holds detached
// elements it intends to delete.
func (t *Tree) Delete(el *etree.Element) error {
	parent := el.Parent()
	if parent == nil {
		return fmt.Errorf("%w: delete of detached element <%s>", util.ErrInternal, el.Tag)
	}
	parent.RemoveChild(el)
	t.Invalidate()
	return nil
}

// Detach removes el from its parent and returns it for re-use.
func (t *Tree) Detach(el *etree.Element) *etree.Element {
	if parent := el.Parent(); parent != nil {
		parent.RemoveChild(el)
		t.Invalidate()
	}
	return el
}

// EnsurePath walks xpath from the root, creating any missing steps, and
// returns the final element. Steps of the form tag[@name='value'] create
// an element with that name attribute. Only simple child steps and @name
// predicates are supported; that covers every container path the
// resolver produces.
func (t *Tree) EnsurePath(xpath string) (*etree.Element, error) {
	steps, err := splitSteps(xpath)
	if err != nil {
		return nil, err
	}
	cur := t.Root()
	if len(steps) > 0 && steps[0].tag == cur.Tag && steps[0].name == "" {
		steps = steps[1:]
	}
	for _, step := range steps {
		next := findChildStep(cur, step)
		if next == nil {
			next = cur.CreateElement(step.tag)
			if step.name != "" {
				next.CreateAttr("name", step.name)
			}
			t.Invalidate()
		}
		cur = next
	}
	return cur, nil
}

// pathStep is one parsed step of a simple xpath: a tag plus an optional
// @name predicate.
type pathStep struct {
	tag  string
	name string
}

// splitSteps parses a simple absolute or relative xpath into steps.
// Predicates other than [@name='...'] are rejected.
func splitSteps(xpath string) ([]pathStep, error) {
	trimmed := strings.TrimPrefix(xpath, "/")
	if trimmed == "" {
		return nil, &util.XPathError{XPath: xpath, Reason: "empty path"}
	}
	var steps []pathStep
	for _, raw := range splitOutsideBrackets(trimmed) {
		if raw == "" {
			return nil, &util.XPathError{XPath: xpath, Reason: "empty step (// is not supported here)"}
		}
		step := pathStep{tag: raw}
		if i := strings.IndexByte(raw, '['); i >= 0 {
			if !strings.HasSuffix(raw, "]") {
				return nil, &util.XPathError{XPath: xpath, Reason: "unterminated predicate"}
			}
			pred := raw[i+1 : len(raw)-1]
			step.tag = raw[:i]
			name, ok := parseNamePredicate(pred)
			if !ok {
				return nil, &util.XPathError{XPath: xpath, Reason: fmt.Sprintf("unsupported predicate [%s]", pred)}
			}
			step.name = name
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// splitOutsideBrackets splits on '/' but not inside [...] predicates.
func splitOutsideBrackets(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			depth--
		case '/':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// parseNamePredicate extracts the value from @name='value' (single or
// double quotes).
func parseNamePredicate(pred string) (string, bool) {
	pred = strings.TrimSpace(pred)
	if !strings.HasPrefix(pred, "@name") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(pred, "@name"))
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	rest = strings.TrimSpace(rest[1:])
	if len(rest) < 2 {
		return "", false
	}
	q := rest[0]
	if (q != '\'' && q != '"') || rest[len(rest)-1] != q {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

// findChildStep locates a direct child matching the step.
func findChildStep(parent *etree.Element, step pathStep) *etree.Element {
	for _, child := range parent.ChildElements() {
		if child.Tag != step.tag {
			continue
		}
		if step.name == "" || child.SelectAttrValue("name", "") == step.name {
			return child
		}
	}
	return nil
}
