package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dshills/devflow/flow/credential"
	"github.com/dshills/devflow/flow/model"
	"github.com/dshills/devflow/flow/store"
	"github.com/dshills/devflow/internal/config"
)

// harness runs commands against one in-memory store so state carries over
// between invocations the way a database file would.
type harness struct {
	t      *testing.T
	st     *store.MemStore
	creds  *credential.MapStore
	models map[string]*model.MockChatModel
}

func newHarness(t *testing.T, providers ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	h := &harness{
		t:      t,
		st:     store.NewMemStore(),
		creds:  credential.NewMapStore(nil),
		models: make(map[string]*model.MockChatModel),
	}
	for _, p := range providers {
		h.creds.Set(p, "key-"+p)
	}
	return h
}

func (h *harness) exec(args ...string) (string, string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.openStore = func(context.Context, *config.Config) (store.Store, error) { return h.st, nil }
	a.credentials = func(*config.Config) credential.Store { return h.creds }
	a.newChatModel = func(_ context.Context, providerID, apiKey, _ string) (model.ChatModel, error) {
		assert.Equal(h.t, "key-"+providerID, apiKey)
		m, ok := h.models[providerID]
		if !ok {
			m = &model.MockChatModel{Responses: []model.ChatOut{{Text: "advice from " + providerID}}}
			h.models[providerID] = m
		}
		return m, nil
	}

	root := newRootCmd(a)
	root.SetArgs(append([]string{"--log-format", "json"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func (h *harness) create(name string) string {
	h.t.Helper()
	out, _, err := h.exec("create", "--name", name,
		"--requirements", `{"projectType":"web","features":["auth"]}`)
	require.NoError(h.t, err)
	fields := strings.Fields(out)
	require.GreaterOrEqual(h.t, len(fields), 3, out)
	return fields[2]
}

func TestRoutes(t *testing.T) {
	h := newHarness(t, "anthropic", "google")

	out, _, err := h.exec("routes")
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "spreadsheet-macro-generation") {
			assert.Equal(t, []string{"spreadsheet-macro-generation", "openai", "google", "google", "true"},
				strings.Fields(line))
		}
	}

	out, _, err = h.exec("routes", "-o", "yaml")
	require.NoError(t, err)
	var views []routeView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 7)
	for _, v := range views {
		assert.NotEmpty(t, v.Chosen, "category %s should resolve", v.Category)
	}

	_, _, err = h.exec("routes", "-o", "xml")
	assert.Error(t, err)
}

func TestRoutes_Unavailable(t *testing.T) {
	h := newHarness(t)
	out, _, err := h.exec("routes", "-o", "yaml")
	require.NoError(t, err)

	var views []routeView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	for _, v := range views {
		assert.Empty(t, v.Chosen)
		assert.False(t, v.UsedFallback)
	}
}

func TestCreateRunShow(t *testing.T) {
	h := newHarness(t, "anthropic", "google")
	id := h.create("storefront")

	out, _, err := h.exec("list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "draft")

	out, _, err = h.exec("run", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "completed")

	out, _, err = h.exec("show", id, "-o", "json")
	require.NoError(t, err)
	var view workflowView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "completed", view.Status)
	require.Len(t, view.Steps, 4)
	for i, s := range view.Steps {
		assert.Equal(t, i+1, s.Order)
		assert.Equal(t, "completed", s.Status)
		assert.NotNil(t, s.CompletedAt)
		assert.NotNil(t, s.Output)
	}

	// Development falls back from openai to google.
	dev, ok := view.Steps[1].Output.(map[string]any)
	require.True(t, ok)
	by, ok := dev["enhancedBy"].(map[string]any)
	require.True(t, ok, "output: %v", dev)
	assert.Equal(t, "google", by["provider"])
	assert.Equal(t, true, by["usedFallback"])
	assert.NotContains(t, h.models, "openai")

	out, _, err = h.exec("show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "status: completed")

	_, _, err = h.exec("run", id)
	require.Error(t, err, "completed workflows are not runnable")
}

func TestCreate_Errors(t *testing.T) {
	h := newHarness(t, "anthropic")

	_, _, err := h.exec("create", "--requirements", "{}")
	assert.Error(t, err, "name is required")

	_, _, err = h.exec("create", "--name", "x", "--requirements", "[1,2]")
	assert.Error(t, err)

	empty := newHarness(t)
	_, _, err = empty.exec("create", "--name", "x")
	assert.Error(t, err, "no orchestration provider")

	all, err := empty.st.ListWorkflows(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreate_RunFlag(t *testing.T) {
	h := newHarness(t, "google")

	out, _, err := h.exec("create", "--name", "doomed", "--run")
	require.Error(t, err, "design stage has no provider")
	assert.Contains(t, out, "failed")

	all, err := h.st.ListWorkflows(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, store.WorkflowFailed, all[0].Status)
}

func TestRun_AllDrafts(t *testing.T) {
	h := newHarness(t, "anthropic", "openai", "google")
	a := h.create("one")
	b := h.create("two")

	_, _, err := h.exec("run")
	assert.Error(t, err, "ids or --all-drafts required")
	_, _, err = h.exec("run", a, "--all-drafts")
	assert.Error(t, err)

	out, _, err := h.exec("run", "--all-drafts")
	require.NoError(t, err)
	assert.Contains(t, out, a)
	assert.Contains(t, out, b)

	out, _, err = h.exec("run", "--all-drafts")
	require.NoError(t, err)
	assert.Contains(t, out, "no draft workflows")

	out, _, err = h.exec("list", "--status", "completed")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"), out)
}

func TestRun_ReportsFailures(t *testing.T) {
	h := newHarness(t, "anthropic", "openai", "google")
	first := h.create("fine")
	bad := h.create("bad")

	h.creds.Remove("anthropic")
	h.creds.Remove("openai")

	out, _, err := h.exec("run", first, bad, "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 3 workflows failed")
	assert.Contains(t, out, "missing-id")
}

func TestLogsAreRedacted(t *testing.T) {
	h := newHarness(t)
	secret := "sk-ant-api03-" + strings.Repeat("a", 40)
	h.creds.Set("anthropic", secret)

	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	a.openStore = func(context.Context, *config.Config) (store.Store, error) { return h.st, nil }
	a.credentials = func(*config.Config) credential.Store { return h.creds }
	a.newChatModel = func(_ context.Context, _ string, apiKey, _ string) (model.ChatModel, error) {
		a.logger.Info("building model with key " + apiKey)
		return &model.MockChatModel{}, nil
	}
	root := newRootCmd(a)
	root.SetArgs([]string{"--log-format", "json", "--log-level", "debug", "list"})
	require.NoError(t, root.Execute())

	assert.Contains(t, errOut.String(), "building model with key")
	assert.NotContains(t, errOut.String(), secret)
}

func TestConfigFlagErrors(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.exec("--store", "cassandra", "list")
	assert.Error(t, err)

	_, _, err = h.exec("--config", "does-not-exist.yaml", "list")
	assert.Error(t, err)
}
