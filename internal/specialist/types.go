// Package specialist defines the twelve generation stages as data and runs
// any of them through one generic executor.
package specialist

import (
	"fmt"
	"sync"
)

// Kind identifies a specialist.
type Kind string

const (
	Database        Kind = "database"
	APIArchitecture Kind = "api_architecture"
	UIUX            Kind = "uiux"
	ImageAssets     Kind = "image_assets"
	Backend         Kind = "backend"
	Frontend        Kind = "frontend"
	Security        Kind = "security"
	Performance     Kind = "performance"
	Testing         Kind = "testing"
	DevOps          Kind = "devops"
	Documentation   Kind = "documentation"
	CodeReview      Kind = "code_review"
)

// Stage result statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskContext is the string-keyed input a prompt is rendered from.
// "requirements" is always present.
type TaskContext map[string]string

// StageResult is the outcome of one specialist execution.
type StageResult struct {
	Stage       string         `json:"stage"`
	Kind        Kind           `json:"agent"`
	Platform    string         `json:"platform,omitempty"`
	Status      string         `json:"status"`
	Result      string         `json:"result"`
	Features    []string       `json:"features"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// Completed reports whether the specialist produced an artifact.
func (r StageResult) Completed() bool { return r.Status == StatusCompleted }

// Artifact returns the result text, or "" for a failed stage.
func (r StageResult) Artifact() string {
	if !r.Completed() {
		return ""
	}
	return r.Result
}

// Definition describes one specialist. Behavior lives in the Executor.
type Definition struct {
	Kind         Kind
	DisplayName  string
	Icon         string
	Description  string
	Expertise    string
	Capabilities []string
	Output       string

	// Template names the embedded prompt file.
	Template string
	// Features are the capability tags attached to a completed result.
	Features []string
	// FeatureLabel is contributed to the integrated feature list when the stage completes.
	FeatureLabel string
	// MaxTokens overrides the executor default when positive.
	MaxTokens int
	// Annotate derives advisory metadata from the artifact. Optional.
	Annotate func(text string, tc TaskContext) map[string]any
}

// Registry holds definitions in catalogue order.
type Registry struct {
	mu    sync.RWMutex
	order []Kind
	defs  map[Kind]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[Kind]*Definition)}
}

// DefaultRegistry returns a registry with all twelve specialists.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range definitions() {
		r.Register(d)
	}
	return r
}

// Register adds a definition. Panics on duplicate kind.
func (r *Registry) Register(d *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[d.Kind]; exists {
		panic(fmt.Sprintf("specialist already registered: %s", d.Kind))
	}
	r.defs[d.Kind] = d
	r.order = append(r.order, d.Kind)
}

// Get returns a definition by kind.
func (r *Registry) Get(kind Kind) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[kind]
	return d, ok
}

// All returns every definition in registration order.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.defs[k])
	}
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
