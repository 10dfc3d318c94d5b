// Package configio loads and saves configuration trees on disk. The
// engine itself only ever sees a parsed tree; this package is the one
// place that touches files.
package configio

import (
	"fmt"
	"os"

	"github.com/beevik/etree"

	"github.com/panflow-net/panflow/pkg/panflow/xmltree"
	"github.com/panflow-net/panflow/pkg/util"
)

// Load reads and parses a configuration file. The document root must be
// a config element.
func Load(path string) (*xmltree.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrParse, err)
	}
	return LoadBytes(data)
}

// LoadBytes parses raw configuration XML.
func LoadBytes(data []byte) (*xmltree.Tree, error) {
	tree, err := xmltree.Parse(data)
	if err != nil {
		return nil, err
	}
	if root := tree.Root(); root.Tag != "config" {
		return nil, fmt.Errorf("%w: root element is <%s>, want <config>", util.ErrParse, root.Tag)
	}
	return tree, nil
}

// Save writes the tree as pretty-printed UTF-8 XML with an XML
// declaration.
func Save(tree *xmltree.Tree, path string) error {
	data, err := Bytes(tree)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	util.Infof("saved configuration to %s", path)
	return nil
}

// Bytes serializes the tree the same way Save does.
func Bytes(tree *xmltree.Tree) ([]byte, error) {
	doc := tree.Document().Copy()
	if len(doc.Child) == 0 || doc.Root() == nil {
		return nil, fmt.Errorf("%w: empty document", util.ErrInternal)
	}
	ensureDeclaration(doc)
	doc.Indent(2)
	return doc.WriteToBytes()
}

// ensureDeclaration prepends the XML declaration when the document lacks
// one.
func ensureDeclaration(doc *etree.Document) {
	for _, child := range doc.Child {
		if _, ok := child.(*etree.ProcInst); ok {
			return
		}
	}
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	// CreateProcInst appends; move it ahead of the root element.
	last := doc.Child[len(doc.Child)-1]
	copy(doc.Child[1:], doc.Child[:len(doc.Child)-1])
	doc.Child[0] = last
}
