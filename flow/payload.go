package flow

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Requirements is the shared input every step receives. Unknown fields are
// preserved in the stored JSON but ignored by the executors.
type Requirements struct {
	ProjectType    string   `json:"projectType,omitempty"`
	Features       []string `json:"features,omitempty"`
	TargetPlatform string   `json:"targetPlatform,omitempty"`
	Framework      string   `json:"framework,omitempty"`
	Styling        string   `json:"styling,omitempty"`
	Complexity     string   `json:"complexity,omitempty"`
	Environment    string   `json:"environment,omitempty"`
}

// ParseRequirements decodes a step input. The input must be a JSON object.
func ParseRequirements(raw json.RawMessage) (Requirements, error) {
	var req Requirements
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return req, errors.New("requirements must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return req, err
	}
	return req, nil
}

// EnhancedBy records which provider produced a step's enhancement.
type EnhancedBy struct {
	Provider     ProviderID   `json:"provider"`
	Category     TaskCategory `json:"category"`
	UsedFallback bool         `json:"usedFallback"`
}

// Enhancement is embedded in every step output.
type Enhancement struct {
	Enhancement string     `json:"enhancement"`
	EnhancedBy  EnhancedBy `json:"enhancedBy"`
}

// DesignTokens are the visual primitives picked for the project.
type DesignTokens struct {
	Colors     map[string]string `json:"colors"`
	Typography map[string]string `json:"typography"`
	Spacing    []int             `json:"spacing"`
	Radius     int               `json:"radius"`
}

// DesignOutput is produced by the design stage.
type DesignOutput struct {
	DesignTokens DesignTokens `json:"designTokens"`
	Components   []string     `json:"components"`
	Layout       string       `json:"layout"`
	Enhancement
}

// DevelopmentOutput is produced by the development stage.
type DevelopmentOutput struct {
	Framework    string   `json:"framework"`
	Language     string   `json:"language"`
	Architecture string   `json:"architecture"`
	StateManager string   `json:"stateManagement"`
	Modules      []string `json:"modules"`
	Enhancement
}

// TestCase is one entry of a test plan.
type TestCase struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TestingOutput is produced by the testing stage.
type TestingOutput struct {
	TestPlan       []TestCase `json:"testPlan"`
	TestTypes      []string   `json:"testTypes"`
	CoverageTarget int        `json:"coverageTarget"`
	Enhancement
}

// DeploymentConfig describes how the build is rolled out.
type DeploymentConfig struct {
	Environment string            `json:"environment"`
	Replicas    int               `json:"replicas"`
	HealthCheck string            `json:"healthCheck"`
	Pipeline    []string          `json:"pipeline"`
	Env         map[string]string `json:"env,omitempty"`
}

// DeploymentOutput is produced by the deployment stage.
type DeploymentOutput struct {
	Target string           `json:"target"`
	Config DeploymentConfig `json:"config"`
	Enhancement
}
