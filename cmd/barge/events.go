package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/core/domain"
)

func newEventsCmd(appFn func() (*app, error)) *cobra.Command {
	var (
		projectName string
		eventType   string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recorded events for a stack",
		Long: `Show the recorded lifecycle events of a stack, newest first: image
builds, container starts and stops, gate outcomes, failures, and volume
changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFn()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			stack, err := a.store.GetStackByName(ctx, domain.Slugify(resolveProjectName(projectName)))
			if err != nil {
				return err
			}

			var typeFilter *string
			if eventType != "" {
				typeFilter = &eventType
			}
			events, err := a.store.ListEvents(ctx, stack.ID, limit, typeFilter)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(events))
			for _, ev := range events {
				rows = append(rows, []string{
					ev.Timestamp.Local().Format(time.RFC3339),
					string(ev.Type),
					dash(ev.Service),
					ev.Message,
				})
			}

			out := NewOutput("table")
			out.Table([]string{"TIME", "TYPE", "SERVICE", "MESSAGE"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "", "Stack name (default: working directory name)")
	cmd.Flags().StringVar(&eventType, "type", "", "Only events of this type")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events")

	return cmd
}
