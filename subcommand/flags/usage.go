package flags

import (
	"bytes"
	"flag"
	"fmt"
)

// Merge copies every flag defined on src onto dst, so a command can compose
// its own flags with a shared flag set (e.g. --cluster-networks).
func Merge(dst, src *flag.FlagSet) {
	if dst == nil {
		panic("dst cannot be nil")
	}
	if src == nil {
		return
	}
	src.VisitAll(func(f *flag.Flag) {
		dst.Var(f.Value, f.Name, f.Usage)
	})
}

// Usage renders txt followed by the -help output for every flag in fs, the
// string returned as a Command's Help().
func Usage(txt string, fs *flag.FlagSet) string {
	var b bytes.Buffer
	if fs != nil {
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(&b, "  -%s\n    \t%s\n", f.Name, f.Usage)
		})
	}
	return fmt.Sprintf("%s\n\nUsage:\n\n%s", txt, b.String())
}
