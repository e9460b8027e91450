package flow

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/dshills/devflow/flow/store"
)

// NewExecutors returns the standard strategy for every stage. Each strategy
// builds its payload from the requirements and then routes an enhancement
// call through router and invoker. Both are required; New rejects executors
// built without them.
func NewExecutors(router *Router, invoker Invoker) Executors {
	return Executors{
		store.Design:      &DesignExecutor{enhancer: newEnhancer(router, invoker, store.Design)},
		store.Development: &DevelopmentExecutor{enhancer: newEnhancer(router, invoker, store.Development)},
		store.Testing:     &TestingExecutor{enhancer: newEnhancer(router, invoker, store.Testing)},
		store.Deployment:  &DeploymentExecutor{enhancer: newEnhancer(router, invoker, store.Deployment)},
	}
}

func newEnhancer(router *Router, invoker Invoker, stage Specialization) enhancer {
	category, _ := CategoryFor(stage)
	return enhancer{router: router, invoker: invoker, stage: stage, category: category}
}

// runStage decodes the input, builds the payload and attaches the enhancement.
func runStage[T any](ctx context.Context, e enhancer, input json.RawMessage,
	build func(Requirements) T, attach func(*T, Enhancement)) (json.RawMessage, error) {
	req, err := ParseRequirements(input)
	if err != nil {
		return nil, &Error{Code: CodeStepExecution, Message: "malformed requirements", Cause: err}
	}

	out := build(req)
	enh, err := e.enhance(ctx, req, out)
	if err != nil {
		return nil, err
	}
	attach(&out, enh)

	raw, err := json.Marshal(out)
	if err != nil {
		return nil, &Error{Code: CodeStepExecution, Message: "failed to encode output", Cause: err}
	}
	return raw, nil
}

// DesignExecutor picks design tokens and a component inventory.
type DesignExecutor struct {
	enhancer
}

// Execute implements StepExecutor.
func (x *DesignExecutor) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return runStage(ctx, x.enhancer, input, BuildDesign, func(o *DesignOutput, e Enhancement) { o.Enhancement = e })
}

// BuildDesign derives the design payload from requirements.
func BuildDesign(req Requirements) DesignOutput {
	palette := map[string]string{
		"primary":    "#2563eb",
		"secondary":  "#64748b",
		"background": "#ffffff",
		"text":       "#0f172a",
	}
	switch strings.ToLower(req.Styling) {
	case "dark":
		palette["background"] = "#0f172a"
		palette["text"] = "#f8fafc"
	case "playful":
		palette["primary"] = "#db2777"
		palette["secondary"] = "#f59e0b"
	}

	components := []string{"Header", "Footer", "Button", "Card"}
	featureComponents := map[string][]string{
		"auth":          {"LoginForm", "SignupForm"},
		"dashboard":     {"StatCard", "Chart"},
		"search":        {"SearchBar", "ResultList"},
		"payments":      {"CheckoutForm", "PriceTag"},
		"chat":          {"MessageList", "Composer"},
		"notifications": {"Toast", "NotificationBell"},
	}
	for _, f := range req.Features {
		components = append(components, featureComponents[strings.ToLower(f)]...)
	}

	layout := "single-column"
	switch strings.ToLower(req.TargetPlatform) {
	case "mobile", "ios", "android":
		layout = "stacked-mobile"
	case "desktop":
		layout = "sidebar"
	default:
		if len(req.Features) > 3 {
			layout = "sidebar"
		}
	}

	return DesignOutput{
		DesignTokens: DesignTokens{
			Colors:     palette,
			Typography: map[string]string{"fontFamily": "Inter, sans-serif", "baseSize": "16px"},
			Spacing:    []int{4, 8, 16, 24, 32},
			Radius:     8,
		},
		Components: components,
		Layout:     layout,
	}
}

// DevelopmentExecutor chooses framework, language and architecture.
type DevelopmentExecutor struct {
	enhancer
}

// Execute implements StepExecutor.
func (x *DevelopmentExecutor) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return runStage(ctx, x.enhancer, input, BuildDevelopment, func(o *DevelopmentOutput, e Enhancement) { o.Enhancement = e })
}

// BuildDevelopment derives the development payload from requirements.
func BuildDevelopment(req Requirements) DevelopmentOutput {
	framework := req.Framework
	if framework == "" {
		switch strings.ToLower(req.TargetPlatform) {
		case "mobile", "ios", "android":
			framework = "react-native"
		case "api", "backend":
			framework = "go-chi"
		default:
			framework = "react"
		}
	}

	language := "typescript"
	if strings.HasPrefix(framework, "go") {
		language = "go"
	}

	architecture := "monolith"
	stateManager := "local"
	switch strings.ToLower(req.Complexity) {
	case "medium":
		architecture = "modular-monolith"
		stateManager = "context"
	case "high", "complex":
		architecture = "microservices"
		stateManager = "redux"
	}

	modules := []string{"core"}
	for _, f := range req.Features {
		modules = append(modules, strings.ToLower(f))
	}
	sort.Strings(modules[1:])

	return DevelopmentOutput{
		Framework:    framework,
		Language:     language,
		Architecture: architecture,
		StateManager: stateManager,
		Modules:      modules,
	}
}

// TestingExecutor produces a test plan and coverage target.
type TestingExecutor struct {
	enhancer
}

// Execute implements StepExecutor.
func (x *TestingExecutor) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return runStage(ctx, x.enhancer, input, BuildTesting, func(o *TestingOutput, e Enhancement) { o.Enhancement = e })
}

// BuildTesting derives the testing payload from requirements.
func BuildTesting(req Requirements) TestingOutput {
	types := []string{"unit", "integration"}
	coverage := 70
	switch strings.ToLower(req.Complexity) {
	case "medium":
		coverage = 80
	case "high", "complex":
		coverage = 90
		types = append(types, "e2e", "load")
	}

	plan := []TestCase{{Name: "smoke: application starts", Type: "integration"}}
	for _, f := range req.Features {
		plan = append(plan,
			TestCase{Name: f + ": happy path", Type: "unit"},
			TestCase{Name: f + ": invalid input", Type: "unit"},
		)
	}

	return TestingOutput{TestPlan: plan, TestTypes: types, CoverageTarget: coverage}
}

// DeploymentExecutor picks a deployment target and rollout configuration.
type DeploymentExecutor struct {
	enhancer
}

// Execute implements StepExecutor.
func (x *DeploymentExecutor) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	return runStage(ctx, x.enhancer, input, BuildDeployment, func(o *DeploymentOutput, e Enhancement) { o.Enhancement = e })
}

// BuildDeployment derives the deployment payload from requirements.
func BuildDeployment(req Requirements) DeploymentOutput {
	env := req.Environment
	if env == "" {
		env = "production"
	}

	target := "container"
	switch strings.ToLower(req.TargetPlatform) {
	case "mobile", "ios", "android":
		target = "app-store"
	case "web", "":
		target = "static-cdn"
		if strings.EqualFold(req.Complexity, "high") || strings.EqualFold(req.Complexity, "complex") {
			target = "kubernetes"
		}
	}

	replicas := 1
	if env == "production" {
		replicas = 2
		if target == "kubernetes" {
			replicas = 3
		}
	}

	return DeploymentOutput{
		Target: target,
		Config: DeploymentConfig{
			Environment: env,
			Replicas:    replicas,
			HealthCheck: "/healthz",
			Pipeline:    []string{"lint", "test", "build", "deploy"},
			Env:         map[string]string{"APP_ENV": env},
		},
	}
}
