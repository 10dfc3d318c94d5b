// Package merge copies objects and policies between contexts, across
// trees, and across versions. Copies cascade through references, resolve
// name conflicts through pluggable strategies, and adapt version-specific
// elements on the way.
//
// Batch semantics: per-item failures never abort a batch and never roll
// back prior successes. Every attempt lands in the summary, merged or
// skipped with a reason.
package merge

import (
	"fmt"

	"github.com/panflow-net/panflow/pkg/panflow/conflict"
	"github.com/panflow-net/panflow/pkg/panflow/pan"
	"github.com/panflow-net/panflow/pkg/panflow/refgraph"
	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/panflow/xpath"
)

// Options is shared by object and policy copies.
type Options struct {
	// SkipIfExists forces the skip strategy regardless of
	// ConflictStrategy. Kept for callers that predate strategies.
	SkipIfExists bool
	// CopyReferences cascades each copy through the entity's references.
	CopyReferences bool
	// CopyWithDependencies copies the full forward dependency closure
	// before the entity itself.
	CopyWithDependencies bool
	// IncludeReferencedBy additionally copies the entities that refer to
	// the one being copied (dependency mode only).
	IncludeReferencedBy bool
	// IncludePolicies lets IncludeReferencedBy follow rule references.
	IncludePolicies bool
	// Validate runs structural validation on every source element before
	// copying; failures become skips.
	Validate bool
	// ConflictStrategy picks the resolution for occupied target slots.
	// Empty means the engine default (skip).
	ConflictStrategy conflict.Strategy
	// RenameSuffix overrides the rename strategy's suffix.
	RenameSuffix string
	// TolerantVersion downgrades missing-required-attribute failures
	// during version adaptation to warnings.
	TolerantVersion bool
	// Prompt services the interactive conflict strategy.
	Prompt conflict.PromptFunc
}

// strategy resolves the effective conflict strategy for these options.
func (o Options) strategy() conflict.Strategy {
	if o.SkipIfExists {
		return conflict.Skip
	}
	if o.ConflictStrategy == "" {
		return conflict.DefaultStrategy
	}
	return o.ConflictStrategy
}

// Item identifies one merged entity.
type Item struct {
	Kind string
	Name string
}

// SkippedItem identifies one skipped entity and why.
type SkippedItem struct {
	Kind   string
	Name   string
	Reason string
}

// Summary is the per-batch report. Counts never hide failures: every
// attempted entity appears exactly once in Merged or Skipped.
type Summary struct {
	Merged   []Item
	Skipped  []SkippedItem
	Warnings []string
}

func (s *Summary) addMerged(kind, name string) {
	s.Merged = append(s.Merged, Item{Kind: kind, Name: name})
}

func (s *Summary) addSkipped(kind, name, reason string) {
	s.Skipped = append(s.Skipped, SkippedItem{Kind: kind, Name: name, Reason: reason})
}

func (s *Summary) warnf(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Counts returns (merged, skipped).
func (s *Summary) Counts() (int, int) { return len(s.Merged), len(s.Skipped) }

// visitKey terminates reference cycles: each (kind, name) pair is copied
// at most once per public call.
type visitKey struct {
	kind string
	name string
}

// Side bundles one side of a merge: a tree plus its shape and version.
type Side struct {
	Tree       *xmltree.Tree
	DeviceType pan.DeviceType
	Version    pan.Version
}

// Merger copies between a source side and a destination side. The two
// sides may share one tree (cross-context merge) or hold different trees
// (cross-configuration merge).
type Merger struct {
	src, dst Side
	resolver *xpath.Resolver
	srcGraph *refgraph.Graph
	dstGraph *refgraph.Graph
}

// New creates a Merger. Versions are resolved to the nearest known
// release.
func New(src, dst Side) *Merger {
	src.Version = pan.ResolveVersion(src.Version)
	dst.Version = pan.ResolveVersion(dst.Version)
	resolver := xpath.New()
	return &Merger{
		src:      src,
		dst:      dst,
		resolver: resolver,
		srcGraph: refgraph.New(src.Tree, resolver, src.DeviceType, src.Version),
		dstGraph: refgraph.New(dst.Tree, resolver, dst.DeviceType, dst.Version),
	}
}

// conflictResolver builds the per-call conflict resolver.
func (m *Merger) conflictResolver(opts Options) (*conflict.Resolver, error) {
	r, err := conflict.New(m.dst.Tree, opts.strategy(), opts.RenameSuffix)
	if err != nil {
		return nil, err
	}
	r.Prompt = opts.Prompt
	return r, nil
}
