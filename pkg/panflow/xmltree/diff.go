package xmltree

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// DiffType classifies one diff entry.
type DiffType string

const (
	DiffAdded     DiffType = "added"
	DiffRemoved   DiffType = "removed"
	DiffChanged   DiffType = "changed"
	DiffUnchanged DiffType = "unchanged"
)

// DiffItem is one observed difference (or confirmed equality) between two
// subtrees, located by a slash path relative to the diff roots.
type DiffItem struct {
	Type        DiffType
	Path        string
	SourceValue string
	TargetValue string
}

// similarityThreshold is the minimum pairing score for children that match
// neither by @name nor by position.
const similarityThreshold = 0.5

// Diff compares source against target and returns the differences. Sibling
// elements are paired by @name first, then by positional order within the
// same tag, then by a similarity score; leftovers are reported as removed
// (source-only) or added (target-only).
func Diff(source, target *etree.Element) []DiffItem {
	var items []DiffItem
	diffElements(source, target, "/"+source.Tag, &items)
	return items
}

func diffElements(src, tgt *etree.Element, path string, out *[]DiffItem) {
	srcText := strings.TrimSpace(src.Text())
	tgtText := strings.TrimSpace(tgt.Text())
	if srcText != tgtText {
		*out = append(*out, DiffItem{Type: DiffChanged, Path: path, SourceValue: srcText, TargetValue: tgtText})
	} else if srcText != "" && len(src.ChildElements()) == 0 && len(tgt.ChildElements()) == 0 {
		*out = append(*out, DiffItem{Type: DiffUnchanged, Path: path, SourceValue: srcText, TargetValue: tgtText})
	}

	sa, ta := attrMap(src), attrMap(tgt)
	for k, v := range sa {
		if tv, ok := ta[k]; !ok {
			*out = append(*out, DiffItem{Type: DiffRemoved, Path: path + "/@" + k, SourceValue: v})
		} else if tv != v {
			*out = append(*out, DiffItem{Type: DiffChanged, Path: path + "/@" + k, SourceValue: v, TargetValue: tv})
		}
	}
	for k, v := range ta {
		if _, ok := sa[k]; !ok {
			*out = append(*out, DiffItem{Type: DiffAdded, Path: path + "/@" + k, TargetValue: v})
		}
	}

	srcKids := src.ChildElements()
	tgtKids := tgt.ChildElements()
	pairs, srcLeft, tgtLeft := pairChildren(srcKids, tgtKids)

	for _, p := range pairs {
		diffElements(p.src, p.tgt, childPath(path, p.src), out)
	}
	for _, s := range srcLeft {
		*out = append(*out, DiffItem{Type: DiffRemoved, Path: childPath(path, s), SourceValue: summarize(s)})
	}
	for _, tgtEl := range tgtLeft {
		*out = append(*out, DiffItem{Type: DiffAdded, Path: childPath(path, tgtEl), TargetValue: summarize(tgtEl)})
	}
}

type elementPair struct {
	src, tgt *etree.Element
}

// pairChildren implements the three-stage sibling matching: @name, then
// positional order per tag, then similarity score across the leftovers.
func pairChildren(srcKids, tgtKids []*etree.Element) ([]elementPair, []*etree.Element, []*etree.Element) {
	var pairs []elementPair
	srcUsed := make([]bool, len(srcKids))
	tgtUsed := make([]bool, len(tgtKids))

	// Stage 1: same tag and same @name.
	for i, s := range srcKids {
		name := s.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		for j, tc := range tgtKids {
			if tgtUsed[j] || tc.Tag != s.Tag || tc.SelectAttrValue("name", "") != name {
				continue
			}
			pairs = append(pairs, elementPair{s, tc})
			srcUsed[i], tgtUsed[j] = true, true
			break
		}
	}

	// Stage 2: positional order within the same tag, unnamed elements only.
	tagCursor := map[string]int{}
	for i, s := range srcKids {
		if srcUsed[i] || s.SelectAttrValue("name", "") != "" {
			continue
		}
		start := tagCursor[s.Tag]
		for j := start; j < len(tgtKids); j++ {
			tc := tgtKids[j]
			if tgtUsed[j] || tc.Tag != s.Tag || tc.SelectAttrValue("name", "") != "" {
				continue
			}
			pairs = append(pairs, elementPair{s, tc})
			srcUsed[i], tgtUsed[j] = true, true
			tagCursor[s.Tag] = j + 1
			break
		}
	}

	// Stage 3: best-scoring pairs among the remainder. Named elements are
	// identities, not candidates: an entry whose @name found no partner in
	// stage 1 was removed or added, never renamed into a different entry.
	for i, s := range srcKids {
		if srcUsed[i] || s.SelectAttrValue("name", "") != "" {
			continue
		}
		bestJ, bestScore := -1, 0.0
		for j, tc := range tgtKids {
			if tgtUsed[j] || tc.SelectAttrValue("name", "") != "" {
				continue
			}
			if score := similarity(s, tc); score > bestScore {
				bestJ, bestScore = j, score
			}
		}
		if bestJ >= 0 && bestScore >= similarityThreshold {
			pairs = append(pairs, elementPair{s, tgtKids[bestJ]})
			srcUsed[i], tgtUsed[bestJ] = true, true
		}
	}

	var srcLeft, tgtLeft []*etree.Element
	for i, s := range srcKids {
		if !srcUsed[i] {
			srcLeft = append(srcLeft, s)
		}
	}
	for j, tc := range tgtKids {
		if !tgtUsed[j] {
			tgtLeft = append(tgtLeft, tc)
		}
	}
	return pairs, srcLeft, tgtLeft
}

// similarity scores two elements: tag match 0.3, text equality 0.3,
// attribute Jaccard 0.4.
func similarity(a, b *etree.Element) float64 {
	score := 0.0
	if a.Tag == b.Tag {
		score += 0.3
	}
	if strings.TrimSpace(a.Text()) == strings.TrimSpace(b.Text()) {
		score += 0.3
	}
	score += 0.4 * attrJaccard(attrMap(a), attrMap(b))
	return score
}

// attrJaccard computes |intersection| / |union| over key=value pairs.
// Two attribute-free elements score 1.
func attrJaccard(a, b map[string]string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	union := map[string]bool{}
	inter := 0
	for k, v := range a {
		union[k+"="+v] = true
	}
	for k, v := range b {
		key := k + "=" + v
		if union[key] {
			inter++
		}
		union[key] = true
	}
	return float64(inter) / float64(len(union))
}

func childPath(base string, el *etree.Element) string {
	if name := el.SelectAttrValue("name", ""); name != "" {
		return fmt.Sprintf("%s/%s[@name='%s']", base, el.Tag, name)
	}
	return base + "/" + el.Tag
}

// summarize renders a short value for added/removed subtree items: the
// element text for leaves, else the child tag list.
func summarize(el *etree.Element) string {
	if text := strings.TrimSpace(el.Text()); text != "" && len(el.ChildElements()) == 0 {
		return text
	}
	return "<" + el.Tag + ">(" + strings.Join(ChildTags(el), ",") + ")"
}
