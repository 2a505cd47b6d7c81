package export

import (
	"io"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig = &spew.ConfigState{
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
	MaxDepth:                32,
}

// Dump writes a deep, human-readable rendering of values to w.
func Dump(w io.Writer, a ...interface{}) {
	spewConfig.Fdump(w, a...)
}

// Sdump returns what Dump would write.
func Sdump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}
