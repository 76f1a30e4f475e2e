// Package docx2md converts WordprocessingML (.docx) packages to markdown
// blocks.
package docx2md

import (
	"docmark/internal/images"
	"docmark/internal/markdown"
)

// Convert walks the body of a .docx package in document order. Embedded
// images are registered on col and referenced by asset id. Structural
// problems with the archive or document part are reported as
// docerr.ErrMalformedStructure.
func Convert(data []byte, col *images.Collector) ([]markdown.Block, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, err
	}
	body, err := pkg.ReadPart(documentPart)
	if err != nil {
		return nil, err
	}
	if col == nil {
		col = &images.Collector{}
	}
	w := &walker{pkg: pkg, images: col}
	if err := w.walkBody(body); err != nil {
		return nil, err
	}
	return w.blocks, nil
}

// TableStyles lists the table styles declared by a package. It is empty when
// the package carries no styles part.
func TableStyles(data []byte) ([]TableStyleInfo, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, err
	}
	return pkg.Styles.TableStyles(), nil
}
