package flags

import (
	"fmt"
	"strings"
)

// FlagMapValue implements the flag.Value interface for `key=value` flags.
type FlagMapValue map[string]string

// String renders the map for -help output.
func (f *FlagMapValue) String() string {
	items := make([]string, 0, len(*f))
	for k, v := range *f {
		items = append(items, fmt.Sprintf("%s=%s", k, v))
	}
	return strings.Join(items, ",")
}

// Set parses "key=value" and inserts it, overwriting any prior value
// for the same key.
func (f *FlagMapValue) Set(v string) error {
	idx := strings.Index(v, "=")
	if idx == -1 {
		return fmt.Errorf("missing '=' in key=value flag: %s", v)
	}

	if *f == nil {
		*f = make(map[string]string)
	}

	key, value := v[:idx], v[idx+1:]
	(*f)[key] = value
	return nil
}
