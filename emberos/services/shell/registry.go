package shell

import (
	"fmt"
	"sort"
	"strings"
)

// Command is one shell command. Min and Max bound the accepted argument
// count; Max of -1 means unbounded.
type Command struct {
	Name    string
	Aliases []string
	Usage   string
	Desc    string
	Min     int
	Max     int
	Run     func(s *Session, args []string) error
}

type registry struct {
	primary map[string]Command
	lookup  map[string]string
}

func newRegistry() *registry {
	return &registry{
		primary: make(map[string]Command),
		lookup:  make(map[string]string),
	}
}

// add registers cmd. Registration happens once at construction, so a bad
// table is a programming error and panics.
func (r *registry) add(cmd Command) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	if cmd.Name == "" {
		panic("shell registry: empty command name")
	}
	if cmd.Run == nil {
		panic(fmt.Sprintf("shell registry: %q has no handler", cmd.Name))
	}
	if _, ok := r.lookup[cmd.Name]; ok {
		panic(fmt.Sprintf("shell registry: duplicate command %q", cmd.Name))
	}

	r.primary[cmd.Name] = cmd
	r.lookup[cmd.Name] = cmd.Name

	for _, alias := range cmd.Aliases {
		alias = strings.TrimSpace(alias)
		if alias == "" {
			continue
		}
		if _, ok := r.lookup[alias]; ok {
			panic(fmt.Sprintf("shell registry: duplicate alias %q", alias))
		}
		r.lookup[alias] = cmd.Name
	}
}

func (r *registry) resolve(name string) (Command, bool) {
	if name == "" {
		return Command{}, false
	}
	primary, ok := r.lookup[name]
	if !ok {
		return Command{}, false
	}
	cmd, ok := r.primary[primary]
	return cmd, ok
}

func (r *registry) names() []string {
	out := make([]string, 0, len(r.primary))
	for name := range r.primary {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
