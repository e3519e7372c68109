// Package validator checks the shape of a transition table: every target
// exists, the terminal state is reachable from everywhere, and so on.
package validator

import (
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/osc/statemachine"
)

// ErrInvalidGraph wraps every issue returned by Result.Err.
var ErrInvalidGraph = errors.New("invalid transition graph")

// Issue codes.
const (
	CodeInitialNotRegistered = "INITIAL_NOT_REGISTERED"
	CodeTerminalRegistered   = "TERMINAL_REGISTERED"
	CodeUnknownTarget        = "UNKNOWN_TARGET"
	CodeDeadEnd              = "DEAD_END"
	CodeUnreachableState     = "UNREACHABLE_STATE"
	CodeTerminalUnreachable  = "TERMINAL_UNREACHABLE"
	CodeSinkUnreachable      = "SINK_UNREACHABLE"
)

// Options names the distinguished states of the graph. Empty fields skip
// the checks that depend on them.
type Options struct {
	Initial  string
	Terminal string
	// Sink is a state that must be reachable from every registered state,
	// e.g. the cleanup state that every abnormal exit is funneled through.
	Sink string
}

// Issue is one validation finding.
type Issue struct {
	Code    string
	State   string
	Message string
}

// Result is the outcome of Validate.
type Result struct {
	Valid  bool
	Issues []Issue
}

// Err returns nil for a valid graph, otherwise every issue joined.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}

	errs := make([]error, 0, len(r.Issues))
	for _, issue := range r.Issues {
		errs = append(errs, fmt.Errorf("%w: %s (%s): %s", ErrInvalidGraph, issue.Code, issue.State, issue.Message))
	}

	return errors.Join(errs...)
}

// Has reports whether an issue with code was found.
func (r Result) Has(code string) bool {
	return slices.ContainsFunc(r.Issues, func(i Issue) bool { return i.Code == code })
}

// Validate inspects registry against opts.
func Validate[C any](registry *statemachine.Registry[C], opts Options) Result {
	states := registry.States()
	graph := make(map[string][]string, len(states))

	var issues []Issue

	for _, state := range states {
		event, _ := registry.Lookup(state)
		targets := event.AllowedStates()
		graph[state] = targets

		if len(targets) == 0 {
			issues = append(issues, Issue{
				Code: CodeDeadEnd, State: state,
				Message: "state has no allowed next states",
			})
		}

		for _, target := range targets {
			if _, ok := registry.Lookup(target); ok || target == opts.Terminal {
				continue
			}

			issues = append(issues, Issue{
				Code: CodeUnknownTarget, State: state,
				Message: fmt.Sprintf("allowed next state %q is neither registered nor terminal", target),
			})
		}
	}

	if opts.Terminal != "" {
		if _, ok := registry.Lookup(opts.Terminal); ok {
			issues = append(issues, Issue{
				Code: CodeTerminalRegistered, State: opts.Terminal,
				Message: "terminal state must not have an action",
			})
		}

		issues = append(issues, mustReach(states, graph, opts.Terminal, CodeTerminalUnreachable)...)
	}

	if opts.Sink != "" {
		issues = append(issues, mustReach(states, graph, opts.Sink, CodeSinkUnreachable)...)
	}

	if opts.Initial != "" {
		if _, ok := registry.Lookup(opts.Initial); !ok {
			issues = append(issues, Issue{
				Code: CodeInitialNotRegistered, State: opts.Initial,
				Message: "initial state has no action",
			})
		} else {
			reached := forward(graph, opts.Initial)

			for _, state := range states {
				if _, ok := reached[state]; !ok {
					issues = append(issues, Issue{
						Code: CodeUnreachableState, State: state,
						Message: fmt.Sprintf("not reachable from %s", opts.Initial),
					})
				}
			}
		}
	}

	return Result{Valid: len(issues) == 0, Issues: issues}
}

// mustReach reports every state from which target cannot be reached.
func mustReach(states []string, graph map[string][]string, target, code string) []Issue {
	reverse := make(map[string][]string)

	for from, targets := range graph {
		for _, to := range targets {
			reverse[to] = append(reverse[to], from)
		}
	}

	canReach := forward(reverse, target)

	var issues []Issue

	for _, state := range states {
		if state == target {
			continue
		}

		if _, ok := canReach[state]; !ok {
			issues = append(issues, Issue{
				Code: code, State: state,
				Message: fmt.Sprintf("%s is not reachable", target),
			})
		}
	}

	return issues
}

func forward(graph map[string][]string, start string) map[string]struct{} {
	seen := map[string]struct{}{start: {}}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, next := range graph[current] {
			if _, ok := seen[next]; ok {
				continue
			}

			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}

	return seen
}
