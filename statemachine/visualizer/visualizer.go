// Package visualizer renders a transition table as a Mermaid state diagram
// or as a YAML table for operators.
package visualizer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/amp-labs/osc/statemachine"
	"gopkg.in/yaml.v3"
)

// Options controls Mermaid output.
type Options struct {
	// Direction is the Mermaid diagram version suffix, "v2" by default.
	Direction string
	Initial   string
	Terminal  string
	// Highlight marks states, e.g. the one a task is currently in.
	Highlight   []string
	ShowActions bool
	// HideSelfLoops drops "X --> X" edges, which clutter poll-until-ready states.
	HideSelfLoops bool
	// Fenced wraps the diagram in a ```mermaid block.
	Fenced bool
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{Direction: "v2", Fenced: true}
}

// Mermaid renders registry as a stateDiagram.
func Mermaid[C any](registry *statemachine.Registry[C], opts Options) string {
	if opts.Direction == "" {
		opts.Direction = "v2"
	}

	var sb strings.Builder

	if opts.Fenced {
		sb.WriteString("```mermaid\n")
	}

	fmt.Fprintf(&sb, "stateDiagram-%s\n", opts.Direction)

	if opts.Initial != "" {
		fmt.Fprintf(&sb, "    [*] --> %s\n", opts.Initial)
	}

	for _, state := range registry.States() {
		event, _ := registry.Lookup(state)

		if opts.ShowActions {
			fmt.Fprintf(&sb, "    %s: %s\\n[%s]\n", state, state, event.ActionName())
		}

		if slices.Contains(opts.Highlight, state) {
			fmt.Fprintf(&sb, "    class %s highlighted\n", state)
		}

		for _, next := range event.AllowedStates() {
			if opts.HideSelfLoops && next == state {
				continue
			}

			fmt.Fprintf(&sb, "    %s --> %s\n", state, next)
		}
	}

	if opts.Terminal != "" {
		fmt.Fprintf(&sb, "    %s --> [*]\n", opts.Terminal)
		fmt.Fprintf(&sb, "    class %s finalState\n", opts.Terminal)
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef finalState fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	sb.WriteString("    classDef highlighted fill:#fff59d,stroke:#f57f17,stroke-width:3px\n")

	if opts.Fenced {
		sb.WriteString("```\n")
	}

	return sb.String()
}

// Row is one state of the YAML table.
type Row struct {
	State   string   `yaml:"state"`
	Action  string   `yaml:"action"`
	Allowed []string `yaml:"allowed"`
}

// Rows returns the table in registration order.
func Rows[C any](registry *statemachine.Registry[C]) []Row {
	states := registry.States()
	rows := make([]Row, 0, len(states))

	for _, state := range states {
		event, _ := registry.Lookup(state)
		rows = append(rows, Row{
			State:   state,
			Action:  event.ActionName(),
			Allowed: event.AllowedStates(),
		})
	}

	return rows
}

// YAML renders the table as a YAML sequence.
func YAML[C any](registry *statemachine.Registry[C]) ([]byte, error) {
	out, err := yaml.Marshal(Rows(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transition table: %w", err)
	}

	return out, nil
}
