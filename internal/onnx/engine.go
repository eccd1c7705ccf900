package onnx

import (
	"context"
	"fmt"
	"log/slog"
)

// Engine manages the named ONNX graph runners loaded from a manifest. It is
// the opaque inference-session façade both backend drivers (musicgen's
// autoregressive decoder, ace_step's diffusion pipeline) are built on: named
// inputs in, named outputs out, nothing more.
type Engine struct {
	runners map[string]GraphRunner
	sm      *SessionManager

	manifestPath string
}

// GraphRunner is the minimal runner contract Engine depends on. It lets
// tests substitute a fake runner for a named graph without touching ORT.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// NewEngineWithRunners builds an Engine from externally provided graph
// runners, bypassing manifest loading and ORT session construction
// entirely. Backend driver unit tests use this to stub out the neural
// network runtime with deterministic fixture runners.
func NewEngineWithRunners(runners map[string]GraphRunner) *Engine {
	internal := make(map[string]GraphRunner, len(runners))
	for name, r := range runners {
		internal[name] = r
	}

	return &Engine{runners: internal}
}

// NewEngine loads the ONNX manifest and creates a Runner for each graph.
func NewEngine(manifestPath string, cfg RunnerConfig) (*Engine, error) {
	sm, err := NewSessionManager(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	runners := make(map[string]GraphRunner, len(sm.Sessions()))
	for _, sess := range sm.Sessions() {
		runner, err := NewRunner(sess, cfg)
		if err != nil {
			for _, r := range runners {
				r.Close()
			}

			return nil, fmt.Errorf("create runner %q: %w", sess.Name, err)
		}

		runners[sess.Name] = runner
		slog.Info("created ONNX runner", "graph", sess.Name)
	}

	return &Engine{
		runners:      runners,
		sm:           sm,
		manifestPath: manifestPath,
	}, nil
}

// Runner returns the named graph runner, if it exists.
func (e *Engine) Runner(name string) (*Runner, bool) {
	r, ok := e.runners[name]
	if !ok {
		return nil, false
	}

	concrete, ok := r.(*Runner)

	return concrete, ok
}

// Run looks up the named graph and executes it with the given named input
// tensors. It is the single call-site both backend drivers route every
// session invocation through, so a missing graph always surfaces the same
// wrapped error regardless of which driver triggered it.
func (e *Engine) Run(ctx context.Context, graph string, inputs map[string]*Tensor) (map[string]*Tensor, error) {
	runner, ok := e.runners[graph]
	if !ok {
		return nil, fmt.Errorf("%s: graph not found in manifest", graph)
	}

	outputs, err := runner.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("%s: run: %w", graph, err)
	}

	return outputs, nil
}

// HasGraph reports whether the named graph is present in the loaded manifest.
func (e *Engine) HasGraph(name string) bool {
	_, ok := e.runners[name]
	return ok
}

// Close releases all ORT resources.
func (e *Engine) Close() {
	for _, r := range e.runners {
		r.Close()
	}
}
