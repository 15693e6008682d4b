// Package graph orders steps by their declared prerequisites.
package graph

import (
	"fmt"
	"strings"

	"github.com/mattjoyce/flightcheck/internal/step"
)

// CycleDetectedError names the prerequisite cycle that makes ordering
// impossible.
type CycleDetectedError struct {
	Cycle []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("prerequisite cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// UnknownPrerequisiteError is returned when a step names a prerequisite that
// was never declared.
type UnknownPrerequisiteError struct {
	StepID  string
	Missing string
}

func (e *UnknownPrerequisiteError) Error() string {
	return fmt.Sprintf("step %q requires unknown prerequisite %q", e.StepID, e.Missing)
}

// NonIdempotentRetryError is returned when a step asks for automatic retries
// without being safe to re-run.
type NonIdempotentRetryError struct {
	StepID string
}

func (e *NonIdempotentRetryError) Error() string {
	return fmt.Sprintf("step %q is retryable but not idempotent; automatic retry would duplicate side effects", e.StepID)
}

// Build topologically sorts steps. Steps with no ordering constraint between
// them keep their declaration order, so a given catalog always produces the
// same sequence. All errors are configuration errors: nothing partial is ever
// returned.
func Build(steps []step.Step) ([]step.Step, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, dup := index[s.ID]; dup {
			return nil, &step.DuplicateStepError{ID: s.ID}
		}
		index[s.ID] = i
	}

	for _, s := range steps {
		if s.Retryable && !s.Idempotent {
			return nil, &NonIdempotentRetryError{StepID: s.ID}
		}
		for _, pre := range s.Prerequisites {
			if _, ok := index[pre]; !ok {
				return nil, &UnknownPrerequisiteError{StepID: s.ID, Missing: pre}
			}
		}
	}

	indegree := make([]int, len(steps))
	for _, s := range steps {
		indegree[index[s.ID]] = len(s.Prerequisites)
	}

	// Kahn's algorithm, but instead of a queue we rescan in declaration order
	// so unconstrained peers come out exactly as declared. Catalogs are small;
	// the quadratic scan is irrelevant.
	ordered := make([]step.Step, 0, len(steps))
	emitted := make([]bool, len(steps))
	for len(ordered) < len(steps) {
		progress := false
		for i, s := range steps {
			if emitted[i] || indegree[i] != 0 {
				continue
			}
			emitted[i] = true
			ordered = append(ordered, s)
			progress = true
			for j, t := range steps {
				if emitted[j] {
					continue
				}
				for _, pre := range t.Prerequisites {
					if pre == s.ID {
						indegree[j]--
					}
				}
			}
		}
		if !progress {
			return nil, &CycleDetectedError{Cycle: findCycle(steps, index, emitted)}
		}
	}
	return ordered, nil
}

// findCycle walks prerequisites among the unemitted steps until a node
// repeats, then returns the closed loop for the error message.
func findCycle(steps []step.Step, index map[string]int, emitted []bool) []string {
	var start string
	for i, s := range steps {
		if !emitted[i] {
			start = s.ID
			break
		}
	}

	seen := make(map[string]int)
	path := []string{}
	cur := start
	for {
		if at, ok := seen[cur]; ok {
			cycle := append([]string{}, path[at:]...)
			return append(cycle, cur)
		}
		seen[cur] = len(path)
		path = append(path, cur)

		// Follow the first unemitted prerequisite; one always exists, or the
		// node would have been emitted.
		next := ""
		for _, pre := range steps[index[cur]].Prerequisites {
			if !emitted[index[pre]] {
				next = pre
				break
			}
		}
		cur = next
	}
}
