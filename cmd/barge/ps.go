package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/shell/runner"
)

// psView is the structured form of ps output for JSON and YAML.
type psView struct {
	Stack    string      `json:"stack" yaml:"stack"`
	Status   string      `json:"status" yaml:"status"`
	Health   string      `json:"health" yaml:"health"`
	Services []psService `json:"services" yaml:"services"`
}

type psService struct {
	Name      string `json:"name" yaml:"name"`
	Image     string `json:"image" yaml:"image"`
	State     string `json:"state" yaml:"state"`
	Gate      string `json:"gate" yaml:"gate"`
	Container string `json:"container,omitempty" yaml:"container,omitempty"`
	Restarts  int    `json:"restarts" yaml:"restarts"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newPsCmd(appFn func() (*app, error)) *cobra.Command {
	var (
		projectName string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "Show service status for a stack",
		Long: `Show each service of a stack: the recorded state merged with the live
container state from the engine. A service whose container is gone shows
its last recorded state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn()
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.runner.Status(cmd.Context(), resolveProjectName(projectName))
			if err != nil {
				return err
			}

			view := statusToView(status)
			rows := make([][]string, 0, len(view.Services))
			for _, svc := range view.Services {
				rows = append(rows, []string{
					svc.Name,
					svc.Image,
					svc.State,
					svc.Gate,
					dash(svc.Container),
					strconv.Itoa(svc.Restarts),
				})
			}

			out := NewOutput(format)
			out.Success("stack " + view.Stack + ": " + view.Status + " (" + view.Health + ")")
			return out.Print([]string{"SERVICE", "IMAGE", "STATE", "GATE", "CONTAINER", "RESTARTS"}, rows, view)
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "", "Stack name (default: working directory name)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, or yaml")

	return cmd
}

// statusToView merges record and container state into the ps view. The
// engine's view of a live container wins over the stored record.
func statusToView(status *runner.StackStatus) psView {
	view := psView{
		Stack:    status.Stack.Name,
		Status:   string(status.Stack.Status),
		Health:   string(status.Health),
		Services: make([]psService, 0, len(status.Services)),
	}
	for _, svc := range status.Services {
		entry := psService{
			Name:     svc.Record.Name,
			Image:    svc.Record.Image,
			State:    string(svc.Record.State),
			Gate:     string(svc.Record.Gate),
			Restarts: svc.Record.Restarts,
			Error:    svc.Record.Error,
		}
		if svc.Container != nil {
			entry.State = svc.Container.State
			entry.Container = shortID(svc.Container.ID)
			entry.Restarts = svc.Container.RestartCount
		}
		view.Services = append(view.Services, entry)
	}
	return view
}
