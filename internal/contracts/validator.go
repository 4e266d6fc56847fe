package contracts

import (
	"fmt"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/workflow"
)

// ValidateWorkflow checks a workflow definition against the step contracts.
// Structural problems (duplicate instances, dangling graph edges) surface via
// the definition's own Validate; this layer enforces the pipeline semantics
// the schema cannot express.
func ValidateWorkflow(def *workflow.WorkflowDefinition) []error {
	var errs []error
	if def == nil {
		return []error{fmt.Errorf("workflow definition is nil")}
	}
	normalized, err := def.Normalized()
	if err != nil {
		return []error{err}
	}

	instances := map[string]string{}
	for _, ref := range normalized.Modules {
		instances[ref.InstanceID()] = ref.ModuleID
	}

	producers := map[string]string{}
	for _, ref := range normalized.Modules {
		contract, known := ContractForModule(ref.ModuleID)
		if !known {
			// Not a built-in step. Plugin steps validate their own
			// artifact bindings at load time.
			continue
		}
		for _, output := range contract.Outputs {
			if _, ok := artifact.Lookup(output); !ok {
				errs = append(errs, fmt.Errorf("%s: output artifact %q is not registered", ref.InstanceID(), output))
			}
			producers[output] = ref.InstanceID()
		}
	}

	for _, ref := range normalized.Modules {
		contract, known := ContractForModule(ref.ModuleID)
		if !known {
			continue
		}
		instance := ref.InstanceID()
		deps := transitiveDeps(normalized.Graph, instance)
		for _, required := range contract.After {
			if !dependsOnModule(deps, instances, required) {
				errs = append(errs, fmt.Errorf("%s must depend on %s", instance, required))
			}
		}
		for _, input := range contract.Inputs {
			producer, ok := producers[input]
			if !ok {
				errs = append(errs, fmt.Errorf("%s: no step in this workflow produces %q", instance, input))
				continue
			}
			if _, reachable := deps[producer]; !reachable {
				errs = append(errs, fmt.Errorf("%s reads %q but does not depend on %s", instance, input, producer))
			}
		}
	}

	return errs
}

// transitiveDeps returns every instance reachable from id through graph edges.
func transitiveDeps(graph workflow.DependencyGraph, id string) map[string]struct{} {
	seen := map[string]struct{}{}
	stack := append([]string(nil), graph[id]...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[next]; ok {
			continue
		}
		seen[next] = struct{}{}
		stack = append(stack, graph[next]...)
	}
	return seen
}

func dependsOnModule(deps map[string]struct{}, instances map[string]string, moduleID string) bool {
	for instance := range deps {
		if instances[instance] == moduleID {
			return true
		}
	}
	return false
}
