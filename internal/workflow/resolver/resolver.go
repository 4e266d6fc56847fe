package resolver

import (
	"fmt"
	"sort"

	"github.com/onboardia/onboardia/internal/artifact"
	"github.com/onboardia/onboardia/internal/module"
	"github.com/onboardia/onboardia/internal/workflow"
)

// NodeState is the resolver's verdict on one onboarding step: done for this
// hire, runnable now, or waiting on an upstream step.
type NodeState string

const (
	NodeStateUnknown  NodeState = "unknown"
	NodeStatePending  NodeState = "pending"
	NodeStateReady    NodeState = "ready"
	NodeStateBlocked  NodeState = "blocked"
	NodeStateComplete NodeState = "complete"
	NodeStateError    NodeState = "error"
)

// Node is one checklist step instance plus its dependency edges and the
// latest readiness snapshot.
type Node struct {
	ID           string
	Ref          workflow.ModuleRef
	Module       module.Module
	Dependencies []string
	Dependents   []string

	State     NodeState
	BlockedBy []string
	Err       error

	Artifacts map[string]ArtifactReport
}

// ArtifactReport is the resolver's view of one step output in the hire's run
// directory.
type ArtifactReport struct {
	Ref      artifact.ArtifactRef
	Status   module.ArtifactStatus
	Metadata *artifact.Metadata
	Err      error
}

// Resolver builds the checklist's dependency graph and evaluates which steps
// still need to run for a hire.
type Resolver struct {
	definition workflow.WorkflowDefinition
	nodes      map[string]*Node
	orderedIDs []string
}

// New constructs a resolver for a checklist definition. Steps are built
// through the registry immediately so a bad definition fails before any run
// starts.
func New(def workflow.WorkflowDefinition, registry *module.Registry) (*Resolver, error) {
	if registry == nil {
		return nil, fmt.Errorf("workflow: module registry is required")
	}
	normalized, err := def.Normalized()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*Node, len(normalized.Modules))
	ordered := make([]string, 0, len(normalized.Modules))
	for _, ref := range normalized.Modules {
		id := ref.InstanceID()
		mod, err := registry.Resolve(ref.ModuleID, convertConfig(ref.Config))
		if err != nil {
			return nil, fmt.Errorf("workflow %s module %s: %w", normalized.ID, id, err)
		}
		node := &Node{
			ID:           id,
			Ref:          ref,
			Module:       mod,
			Dependencies: normalized.Dependencies(id),
		}
		nodes[id] = node
		ordered = append(ordered, id)
	}
	for _, node := range nodes {
		for _, depID := range node.Dependencies {
			dep, ok := nodes[depID]
			if !ok {
				return nil, fmt.Errorf("workflow %s: dependency %s referenced by %s not declared", normalized.ID, depID, node.ID)
			}
			dep.Dependents = append(dep.Dependents, node.ID)
		}
	}
	for _, node := range nodes {
		if len(node.Dependents) > 1 {
			sort.Strings(node.Dependents)
		}
	}
	return &Resolver{
		definition: normalized,
		nodes:      nodes,
		orderedIDs: ordered,
	}, nil
}

// Definition returns a clone of the resolver's checklist definition.
func (r *Resolver) Definition() workflow.WorkflowDefinition {
	return r.definition.Clone()
}

// Nodes returns the steps in checklist declaration order.
func (r *Resolver) Nodes() []*Node {
	out := make([]*Node, 0, len(r.orderedIDs))
	for _, id := range r.orderedIDs {
		if node, ok := r.nodes[id]; ok {
			out = append(out, node)
		}
	}
	return out
}

// Node retrieves a step by checklist instance ID.
func (r *Resolver) Node(id string) (*Node, bool) {
	node, ok := r.nodes[id]
	return node, ok
}

// Refresh re-evaluates step completion and readiness against the hire's run
// directory. Call it before asking for runnable steps so the snapshot
// reflects what is actually on disk.
func (r *Resolver) Refresh(ctx *module.ModuleContext) error {
	if ctx == nil {
		return fmt.Errorf("workflow: module context is required")
	}
	for _, node := range r.nodes {
		node.Err = nil
		node.BlockedBy = nil
		node.Artifacts = nil
		node.State = NodeStateUnknown
		complete, err := node.Module.IsComplete(ctx)
		if err != nil {
			node.State = NodeStateError
			node.Err = err
			continue
		}
		if complete {
			node.State = NodeStateComplete
		} else {
			node.State = NodeStatePending
		}
	}
	for _, node := range r.nodes {
		if node.State == NodeStateError {
			continue
		}
		r.refreshArtifacts(ctx, node)
		// A step that claims completion but whose outputs are missing or
		// stale must rerun for this hire.
		if node.State == NodeStateComplete && node.hasArtifactIssues() {
			node.State = NodeStatePending
		}
	}
	for _, node := range r.nodes {
		if node.State == NodeStateComplete || node.State == NodeStateError {
			continue
		}
		blockers := r.blockers(node)
		if len(blockers) == 0 {
			node.State = NodeStateReady
		} else {
			node.State = NodeStateBlocked
			node.BlockedBy = blockers
		}
	}
	return nil
}

// Ready returns steps whose upstream steps are all complete.
func (r *Resolver) Ready() []*Node {
	var ready []*Node
	for _, id := range r.orderedIDs {
		node := r.nodes[id]
		if node.State == NodeStateReady {
			ready = append(ready, node)
		}
	}
	return ready
}

// Queue returns the steps that must run to satisfy the requested targets,
// dependencies first. With no targets, every incomplete step is included.
// Already-complete steps are skipped.
func (r *Resolver) Queue(targets ...string) ([]*Node, error) {
	if len(targets) == 0 {
		targets = append([]string{}, r.orderedIDs...)
	}
	visited := make(map[string]bool, len(targets))
	ordered := make([]*Node, 0, len(r.nodes))
	var visit func(string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		node, ok := r.nodes[id]
		if !ok {
			return fmt.Errorf("workflow: unknown module %s", id)
		}
		visited[id] = true
		for _, dep := range node.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		if node.State != NodeStateComplete {
			ordered = append(ordered, node)
		}
		return nil
	}
	for _, id := range targets {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func (r *Resolver) blockers(node *Node) []string {
	if len(node.Dependencies) == 0 {
		return nil
	}
	blockers := make([]string, 0, len(node.Dependencies))
	for _, depID := range node.Dependencies {
		dep, ok := r.nodes[depID]
		if !ok || dep.State != NodeStateComplete {
			blockers = append(blockers, depID)
		}
	}
	if len(blockers) == 0 {
		return nil
	}
	return blockers
}

func (r *Resolver) refreshArtifacts(ctx *module.ModuleContext, node *Node) {
	outputs := node.Module.Outputs()
	if len(outputs) == 0 {
		node.Artifacts = nil
		return
	}
	if node.Artifacts == nil {
		node.Artifacts = make(map[string]ArtifactReport, len(outputs))
	} else {
		for key := range node.Artifacts {
			delete(node.Artifacts, key)
		}
	}
	for _, ref := range outputs {
		report := r.CheckArtifact(ctx, node, ref)
		node.Artifacts[ref.ID] = report
	}
}

func (n *Node) hasArtifactIssues() bool {
	if len(n.Artifacts) == 0 {
		return false
	}
	for _, report := range n.Artifacts {
		if report.Status != module.ArtifactStatusReady {
			return true
		}
	}
	return false
}

// CheckArtifact evaluates a single step output. Ready requires the file to
// exist with metadata naming this step at its current version; anything else
// forces a rerun.
func (r *Resolver) CheckArtifact(ctx *module.ModuleContext, node *Node, ref artifact.ArtifactRef) ArtifactReport {
	report := ArtifactReport{Ref: ref, Status: module.ArtifactStatusUnknown}
	if ctx == nil || ctx.Artifacts == nil {
		report.Status = module.ArtifactStatusError
		report.Err = fmt.Errorf("workflow: artifact store unavailable")
		return report
	}
	result, err := ctx.Artifacts.Check(ref)
	report.Metadata = result.Metadata
	if err != nil {
		report.Err = err
	}
	switch result.State {
	case artifact.StateMissing:
		report.Status = module.ArtifactStatusMissing
	case artifact.StateInvalid:
		if report.Err == nil {
			report.Err = result.Err
		}
		report.Status = module.ArtifactStatusInvalid
	case artifact.StateError:
		if report.Err == nil {
			report.Err = result.Err
		}
		if report.Err == nil {
			report.Err = fmt.Errorf("workflow: %s encountered an unknown error", ref.ID)
		}
		report.Status = module.ArtifactStatusError
	case artifact.StateReady:
		info := node.Module.Info()
		meta := result.Metadata
		if meta == nil {
			report.Status = module.ArtifactStatusInvalid
			report.Err = fmt.Errorf("workflow: %s missing metadata", ref.ID)
			break
		}
		if meta.ModuleID != info.ID {
			report.Status = module.ArtifactStatusInvalid
			report.Err = fmt.Errorf("workflow: %s created by %s expected %s", ref.ID, meta.ModuleID, info.ID)
			break
		}
		if meta.Version != info.Version {
			report.Status = module.ArtifactStatusOutdated
			break
		}
		report.Status = module.ArtifactStatusReady
	default:
		report.Status = module.ArtifactStatusUnknown
	}
	return report
}

func convertConfig(cfg workflow.ModuleConfig) module.Config {
	if len(cfg) == 0 {
		return nil
	}
	out := make(module.Config, len(cfg))
	for key, value := range cfg {
		out[key] = value
	}
	return out
}
