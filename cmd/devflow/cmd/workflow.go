package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/devflow/flow"
	"github.com/dshills/devflow/flow/store"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		name, description, owner string
		requirements, reqFile    string
		run                      bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft workflow from project requirements",
		Example: `  devflow create --name shop --requirements '{"projectType":"web","features":["auth","checkout"]}'
  devflow create --name app --requirements-file req.json --run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readRequirements(cmd.InOrStdin(), requirements, reqFile)
			if err != nil {
				return err
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			wf, err := rt.engine.CreateWorkflow(cmd.Context(), name, description, raw, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created workflow %s (%s)\n", wf.ID, wf.Status)
			if !run {
				return nil
			}

			done, err := rt.engine.ExecuteWorkflow(cmd.Context(), wf.ID)
			if done.ID != "" {
				fmt.Fprintf(a.out, "workflow %s %s\n", done.ID, done.Status)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "workflow name (required)")
	cmd.Flags().StringVar(&description, "description", "", "workflow description")
	cmd.Flags().StringVar(&owner, "owner", "", "owner ID")
	cmd.Flags().StringVar(&requirements, "requirements", "", "requirements as a JSON object")
	cmd.Flags().StringVar(&reqFile, "requirements-file", "", "file holding the requirements JSON (- for stdin)")
	cmd.Flags().BoolVar(&run, "run", false, "execute the workflow after creating it")
	cmd.MarkFlagsMutuallyExclusive("requirements", "requirements-file")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func readRequirements(stdin io.Reader, inline, path string) (json.RawMessage, error) {
	switch {
	case path == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading requirements from stdin: %w", err)
		}
		return b, nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading requirements: %w", err)
		}
		return b, nil
	default:
		return json.RawMessage(inline), nil
	}
}

func newRunCmd(a *app) *cobra.Command {
	var allDrafts bool
	cmd := &cobra.Command{
		Use:   "run [workflow-id...]",
		Short: "Execute draft workflows",
		Long: `Execute one or more draft workflows. Workflows run concurrently up to
engine.concurrency; each runs its four steps in order and stops at the first
failure.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if allDrafts == (len(args) > 0) {
				return fmt.Errorf("give workflow IDs or --all-drafts, not both or neither")
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ids := args
			if allDrafts {
				all, err := rt.engine.ListWorkflows(cmd.Context(), "")
				if err != nil {
					return err
				}
				for _, wf := range all {
					if wf.Status == store.WorkflowDraft {
						ids = append(ids, wf.ID)
					}
				}
				if len(ids) == 0 {
					fmt.Fprintln(a.out, "no draft workflows")
					return nil
				}
			}

			results, _ := rt.engine.ExecuteMany(cmd.Context(), ids, a.cfg.Engine.Concurrency)
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WORKFLOW\tSTATUS\tERROR")
			failed := 0
			for _, r := range results {
				status, msg := string(r.Workflow.Status), "-"
				if r.Err != nil {
					failed++
					msg = r.Err.Error()
					if status == "" {
						status = flow.ErrorCode(r.Err)
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.WorkflowID, status, msg)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d workflows failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&allDrafts, "all-drafts", false, "execute every draft workflow")
	return cmd
}

type stepView struct {
	ID              string     `json:"id" yaml:"id"`
	Specialization  string     `json:"specialization" yaml:"specialization"`
	Order           int        `json:"order" yaml:"order"`
	Status          string     `json:"status" yaml:"status"`
	Output          any        `json:"output,omitempty" yaml:"output,omitempty"`
	ExecutionTimeMs *int64     `json:"executionTimeMs,omitempty" yaml:"executionTimeMs,omitempty"`
	Error           *string    `json:"error,omitempty" yaml:"error,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
}

type workflowView struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Description  string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status       string     `json:"status" yaml:"status"`
	OwnerID      string     `json:"ownerId,omitempty" yaml:"ownerId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt"`
	Requirements any        `json:"requirements" yaml:"requirements"`
	Steps        []stepView `json:"steps" yaml:"steps"`
}

func newWorkflowView(wf flow.Workflow, steps []flow.Step) (workflowView, error) {
	v := workflowView{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Status:      string(wf.Status),
		OwnerID:     wf.OwnerID,
		CreatedAt:   wf.CreatedAt,
		Steps:       make([]stepView, 0, len(steps)),
	}
	if err := json.Unmarshal(wf.Requirements, &v.Requirements); err != nil {
		return workflowView{}, fmt.Errorf("decoding requirements: %w", err)
	}
	for _, s := range steps {
		sv := stepView{
			ID:              s.ID,
			Specialization:  string(s.Specialization),
			Order:           s.Order,
			Status:          string(s.Status),
			ExecutionTimeMs: s.ExecutionTimeMs,
			Error:           s.ErrorMessage,
			CompletedAt:     s.CompletedAt,
		}
		if len(s.OutputData) > 0 {
			if err := json.Unmarshal(s.OutputData, &sv.Output); err != nil {
				return workflowView{}, fmt.Errorf("decoding %s output: %w", s.Specialization, err)
			}
		}
		v.Steps = append(v.Steps, sv)
	}
	return v, nil
}

func newShowCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Print a workflow and its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "yaml" && output != "json" {
				return fmt.Errorf("unknown output %q (want yaml or json)", output)
			}

			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			wf, err := rt.engine.Workflow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			steps, err := rt.engine.Steps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			view, err := newWorkflowView(wf, steps)
			if err != nil {
				return err
			}

			if output == "json" {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			enc := yaml.NewEncoder(a.out)
			defer enc.Close()
			return enc.Encode(view)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var owner, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			all, err := rt.engine.ListWorkflows(cmd.Context(), owner)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tOWNER\tCREATED")
			for _, wf := range all {
				if status != "" && !strings.EqualFold(string(wf.Status), status) {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					wf.ID, wf.Name, wf.Status, orDash(wf.OwnerID), wf.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only workflows owned by this ID")
	cmd.Flags().StringVar(&status, "status", "", "only workflows in this status")
	return cmd
}
