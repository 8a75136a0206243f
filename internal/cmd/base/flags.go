package base

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
)

// FlagSet wraps flag.FlagSet to render help text for cli.Command.Help.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f. Parse errors are reported by the caller through the UI.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	f.SetOutput(io.Discard)
	return &FlagSet{FlagSet: f}
}

// Help returns the formatted list of flags.
func (f *FlagSet) Help() string {
	var flags []*flag.Flag
	f.VisitAll(func(fl *flag.Flag) {
		flags = append(flags, fl)
	})
	if len(flags) == 0 {
		return ""
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	var buf bytes.Buffer
	buf.WriteString("\n\nOptions:\n")
	for _, fl := range flags {
		fmt.Fprintf(&buf, "\n  -%s", fl.Name)
		if fl.DefValue != "" {
			fmt.Fprintf(&buf, "=%s", fl.DefValue)
		}
		fmt.Fprintf(&buf, "\n      %s\n", fl.Usage)
	}
	return strings.TrimRight(buf.String(), "\n")
}

// KeyValueVar defines a repeatable key=value flag collected into m.
func (f *FlagSet) KeyValueVar(m *map[string]string, name, usage string) {
	f.Var(&keyValueValue{m: m}, name, usage)
}

// StringSliceVar defines a repeatable string flag collected into s.
func (f *FlagSet) StringSliceVar(s *[]string, name, usage string) {
	f.Var(&stringSliceValue{s: s}, name, usage)
}

type keyValueValue struct {
	m *map[string]string
}

func (v *keyValueValue) String() string {
	if v.m == nil || len(*v.m) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*v.m))
	for k, val := range *v.m {
		pairs = append(pairs, k+"="+val)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (v *keyValueValue) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if *v.m == nil {
		*v.m = make(map[string]string)
	}
	(*v.m)[key] = value
	return nil
}

type stringSliceValue struct {
	s *[]string
}

func (v *stringSliceValue) String() string {
	if v.s == nil {
		return ""
	}
	return strings.Join(*v.s, ",")
}

func (v *stringSliceValue) Set(s string) error {
	*v.s = append(*v.s, s)
	return nil
}
