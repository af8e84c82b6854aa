package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/spf13/cobra"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/shell/docker"
)

func newLogsCmd(appFn func() (*app, error)) *cobra.Command {
	var (
		projectName string
		service     string
		tail        int
		follow      bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show container logs for a stack",
		Long: `Show container logs for a stack's services, each line prefixed with the
service name. Services that never started have no container and are
skipped.`,
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
			records, err := a.store.ListServices(ctx, stack.ID)
			if err != nil {
				return err
			}

			width := 0
			targets := make([]domain.ServiceRecord, 0, len(records))
			for _, rec := range records {
				if service != "" && rec.Name != service {
					continue
				}
				if rec.ContainerID == "" {
					continue
				}
				if len(rec.Name) > width {
					width = len(rec.Name)
				}
				targets = append(targets, rec)
			}
			if service != "" && len(targets) == 0 {
				return fmt.Errorf("no container for service %q in stack %q", service, stack.Name)
			}

			tailStr := strconv.Itoa(tail)
			if tail <= 0 {
				tailStr = "all"
			}

			dest := &syncWriter{w: os.Stdout}
			var wg sync.WaitGroup
			for _, rec := range targets {
				reader, err := a.docker.ContainerLogs(ctx, rec.ContainerID, docker.LogOptions{
					Tail:   tailStr,
					Follow: follow,
				})
				if err != nil {
					a.logger.Warn("failed to read logs", "service", rec.Name, "error", err)
					continue
				}
				prefix := fmt.Sprintf("%-*s | ", width, rec.Name)
				if follow {
					wg.Add(1)
					go func() {
						defer wg.Done()
						defer reader.Close()
						copyLogs(dest, prefix, reader)
					}()
				} else {
					copyLogs(dest, prefix, reader)
					reader.Close()
				}
			}
			wg.Wait()
			return nil
		},
	}

	cmd.Flags().StringVar(&projectName, "project-name", "", "Stack name (default: working directory name)")
	cmd.Flags().StringVar(&service, "service", "", "Only this service")
	cmd.Flags().IntVar(&tail, "tail", 100, "Trailing lines per service (0 = all)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream new log lines")

	return cmd
}

// copyLogs demultiplexes one container's log stream onto dest, each line
// carrying the service prefix. Containers are created without a TTY, so
// the stream always uses the engine's multiplexed framing.
func copyLogs(dest io.Writer, prefix string, r io.Reader) {
	w := &prefixWriter{w: dest, prefix: prefix}
	_, _ = stdcopy.StdCopy(w, w, r)
	w.Flush()
}

// =============================================================================
// Line-Prefixing Writers
// =============================================================================

// prefixWriter buffers writes and emits whole lines, each with a fixed
// prefix, as single writes to the underlying writer.
type prefixWriter struct {
	w      io.Writer
	prefix string
	buf    []byte
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.buf = append(p.buf, b...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(p.buf[:i], []byte("\r"))
		if _, err := fmt.Fprintf(p.w, "%s%s\n", p.prefix, line); err != nil {
			return len(b), err
		}
		p.buf = p.buf[i+1:]
	}
	return len(b), nil
}

// Flush emits a trailing partial line, if any.
func (p *prefixWriter) Flush() {
	if len(p.buf) > 0 {
		fmt.Fprintf(p.w, "%s%s\n", p.prefix, p.buf)
		p.buf = nil
	}
}

// syncWriter serializes writes from concurrent log streams so lines from
// different services never interleave.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(b)
}
