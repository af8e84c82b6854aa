package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
	"github.com/bargehq/barge/internal/shell/store"
)

// =============================================================================
// Fake Engine
// =============================================================================

// fakeEngine is an in-memory docker.Client. It records every call in
// order and lets tests script probe results and per-service failures.
type fakeEngine struct {
	mu     sync.Mutex
	calls  []string
	nextID int

	containers map[string]*fakeContainer
	networks   map[string]map[string]string
	volumes    map[string]map[string]string
	images     map[string]bool

	// probeCodes scripts Execute exit codes per service; the last code
	// repeats once the script is consumed.
	probeCodes map[string][]int
	// exitCodes scripts WaitContainer exit codes per service.
	exitCodes map[string]int

	createErr map[string]error
	startErr  map[string]error
	pullErr   map[string]error
	buildErr  map[string]error
}

type fakeContainer struct {
	id       string
	name     string
	service  string
	state    string
	exitCode int
	spec     docker.ContainerSpec
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		containers: make(map[string]*fakeContainer),
		networks:   make(map[string]map[string]string),
		volumes:    make(map[string]map[string]string),
		images:     make(map[string]bool),
		probeCodes: make(map[string][]int),
		exitCodes:  make(map[string]int),
		createErr:  make(map[string]error),
		startErr:   make(map[string]error),
		pullErr:    make(map[string]error),
		buildErr:   make(map[string]error),
	}
}

func (f *fakeEngine) seedImages(images ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, img := range images {
		f.images[img] = true
	}
}

// log appends to the call log; callers hold f.mu.
func (f *fakeEngine) log(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

// callIndex returns the position of the first matching call, or -1.
func (f *fakeEngine) callIndex(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.calls {
		if c == call {
			return i
		}
	}
	return -1
}

// callCount counts calls with the given prefix.
func (f *fakeEngine) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeEngine) containerByService(service string) *fakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.service == service {
			return c
		}
	}
	return nil
}

// --- container operations ---

func (f *fakeEngine) CreateContainer(_ context.Context, spec docker.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	service := spec.Labels[plan.LabelService]
	if err := f.createErr[service]; err != nil {
		return "", err
	}
	for _, c := range f.containers {
		if c.name == spec.Name {
			return "", docker.ErrContainerAlreadyExists
		}
	}
	f.nextID++
	id := fmt.Sprintf("ctr-%d", f.nextID)
	f.containers[id] = &fakeContainer{id: id, name: spec.Name, service: service, state: "created", spec: spec}
	f.log("create %s", service)
	return id, nil
}

func (f *fakeEngine) StartContainer(_ context.Context, containerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return docker.ErrContainerNotFound
	}
	if err := f.startErr[c.service]; err != nil {
		return err
	}
	c.state = "running"
	f.log("start %s", c.service)
	return nil
}

func (f *fakeEngine) StopContainer(_ context.Context, containerID string, _ *time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return docker.ErrContainerNotFound
	}
	c.state = "exited"
	f.log("stop %s", c.service)
	return nil
}

func (f *fakeEngine) WaitContainer(_ context.Context, containerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return 0, docker.ErrContainerNotFound
	}
	code := f.exitCodes[c.service]
	c.state = "exited"
	c.exitCode = code
	f.log("wait %s", c.service)
	return code, nil
}

func (f *fakeEngine) KillContainer(_ context.Context, containerID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return docker.ErrContainerNotFound
	}
	c.state = "exited"
	c.exitCode = 137
	f.log("kill %s", c.service)
	return nil
}

func (f *fakeEngine) RemoveContainer(_ context.Context, containerID string, _ docker.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return docker.ErrContainerNotFound
	}
	delete(f.containers, containerID)
	f.log("remove %s", c.service)
	return nil
}

func (f *fakeEngine) InspectContainer(_ context.Context, containerID string) (*docker.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return nil, docker.ErrContainerNotFound
	}
	return &docker.ContainerInfo{
		ID:       c.id,
		Name:     c.name,
		Image:    c.spec.Image,
		Status:   docker.ContainerStatus(c.state),
		State:    c.state,
		ExitCode: c.exitCode,
		Labels:   c.spec.Labels,
	}, nil
}

func (f *fakeEngine) ListContainers(_ context.Context, opts docker.ListOptions) ([]docker.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []docker.ContainerInfo
	for _, c := range f.containers {
		if !opts.All && c.state != "running" {
			continue
		}
		if !matchLabelFilter(c.spec.Labels, opts.Filters) {
			continue
		}
		result = append(result, docker.ContainerInfo{
			ID:     c.id,
			Name:   c.name,
			Image:  c.spec.Image,
			Status: docker.ContainerStatus(c.state),
			State:  c.state,
			Labels: c.spec.Labels,
		})
	}
	return result, nil
}

func (f *fakeEngine) ContainerLogs(_ context.Context, _ string, _ docker.LogOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeEngine) ContainerStats(_ context.Context, _ string) (*docker.ContainerResourceStats, error) {
	return &docker.ContainerResourceStats{}, nil
}

func (f *fakeEngine) Execute(_ context.Context, containerID string, _ []string) (*docker.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.containers[containerID]
	if c == nil {
		return nil, docker.ErrContainerNotFound
	}
	code := 0
	if codes := f.probeCodes[c.service]; len(codes) > 0 {
		code = codes[0]
		if len(codes) > 1 {
			f.probeCodes[c.service] = codes[1:]
		}
	}
	f.log("probe %s %d", c.service, code)
	return &docker.ExecResult{ExitCode: code}, nil
}

// --- network operations ---

func (f *fakeEngine) CreateNetwork(_ context.Context, spec docker.NetworkSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.networks[spec.Name]; ok {
		return "", docker.ErrNetworkAlreadyExists
	}
	f.networks[spec.Name] = spec.Labels
	f.log("network-create %s", spec.Name)
	return spec.Name, nil
}

func (f *fakeEngine) RemoveNetwork(_ context.Context, networkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.networks[networkID]; !ok {
		return docker.ErrNetworkNotFound
	}
	delete(f.networks, networkID)
	f.log("network-remove %s", networkID)
	return nil
}

// --- volume operations ---

func (f *fakeEngine) CreateVolume(_ context.Context, spec docker.VolumeSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volumes[spec.Name] = spec.Labels
	f.log("volume-create %s", spec.Name)
	return spec.Name, nil
}

func (f *fakeEngine) RemoveVolume(_ context.Context, volumeName string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.volumes[volumeName]; !ok {
		return docker.ErrVolumeNotFound
	}
	delete(f.volumes, volumeName)
	f.log("volume-remove %s", volumeName)
	return nil
}

func (f *fakeEngine) VolumeExists(_ context.Context, volumeName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.volumes[volumeName]
	return ok, nil
}

func (f *fakeEngine) ListVolumes(_ context.Context, filterArgs map[string]string) ([]docker.VolumeInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []docker.VolumeInfo
	for name, labels := range f.volumes {
		if !matchLabelFilter(labels, filterArgs) {
			continue
		}
		result = append(result, docker.VolumeInfo{Name: name, Labels: labels})
	}
	return result, nil
}

// --- image operations ---

func (f *fakeEngine) PullImage(_ context.Context, image string, _ docker.PullOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pullErr[image]; err != nil {
		return err
	}
	f.images[image] = true
	f.log("pull %s", image)
	return nil
}

func (f *fakeEngine) BuildImage(_ context.Context, spec docker.BuildSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	service := spec.Labels[plan.LabelService]
	if err := f.buildErr[service]; err != nil {
		return "", err
	}
	f.images[spec.Tag] = true
	f.log("build %s", spec.Tag)
	return "img-" + spec.Tag, nil
}

func (f *fakeEngine) ImageExists(_ context.Context, image string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[image], nil
}

// --- event and lifecycle operations ---

func (f *fakeEngine) StreamEvents(_ context.Context, _ map[string]string) (<-chan docker.EngineEvent, <-chan error) {
	events := make(chan docker.EngineEvent)
	errs := make(chan error)
	close(events)
	close(errs)
	return events, errs
}

func (f *fakeEngine) Ping(_ context.Context) error { return nil }
func (f *fakeEngine) Close() error                 { return nil }

// matchLabelFilter applies a {"label": "key=value"} filter map.
func matchLabelFilter(labels, filters map[string]string) bool {
	pair, ok := filters["label"]
	if !ok {
		return true
	}
	k, v, ok := strings.Cut(pair, "=")
	if !ok {
		return true
	}
	return labels[k] == v
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupRunnerTest(t *testing.T) (*Runner, *fakeEngine, store.Store, string) {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	engine := newFakeEngine()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := New(engine, st, logger)

	return r, engine, st, t.TempDir()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// eventTypes flattens recorded events into their type strings.
func eventTypes(t *testing.T, st store.Store, stackID string) []string {
	t.Helper()
	events, err := st.ListEvents(context.Background(), stackID, 1000, nil)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, string(e.Type))
	}
	return types
}

// =============================================================================
// Topology Fixtures
// =============================================================================

// webTopology is the canonical four-service stack: a backend gated on a
// healthy database and a started cache, an ungated admin UI, and an
// ungated cache. Probe timings are tightened so gates settle fast.
const webTopology = `
services:
  backend:
    image: demo/backend:1.0
    ports:
      - "8000:8000"
    depends_on:
      db:
        condition: service_healthy
      cache:
        condition: service_started
    restart: always

  db:
    image: postgres:16.4
    ports:
      - "5432:5432"
    env_file:
      - db.env
    volumes:
      - pgdata:/var/lib/postgresql/data
    healthcheck:
      test: ["CMD-SHELL", "pg_isready -U app -d appdb"]
      interval: 5ms
      timeout: 50ms
      retries: 3
    restart: always

  admin:
    image: dpage/pgadmin4:8.12
    ports:
      - "8888:80"
    restart: always

  cache:
    image: redis:7.4-alpine
    ports:
      - "6379:6379"
    restart: always

volumes:
  pgdata:
`

const webEnvFile = "POSTGRES_USER=app\nPOSTGRES_DB=appdb\n"

var webImages = []string{"demo/backend:1.0", "postgres:16.4", "dpage/pgadmin4:8.12", "redis:7.4-alpine"}

// chainTopology gates a chain: mid needs base healthy, edge needs mid
// started. A failing base must block both transitively.
const chainTopology = `
services:
  base:
    image: demo/base:1.0
    healthcheck:
      test: ["CMD", "true"]
      interval: 5ms
      timeout: 50ms
      retries: 2
    restart: always

  mid:
    image: demo/mid:1.0
    depends_on:
      base:
        condition: service_healthy
    restart: always

  edge:
    image: demo/edge:1.0
    depends_on:
      mid:
        condition: service_started
    restart: always
`

var chainImages = []string{"demo/base:1.0", "demo/mid:1.0", "demo/edge:1.0"}

// migrateTopology runs a one-shot migration the api waits on.
const migrateTopology = `
services:
  migrate:
    image: demo/migrate:1.0
    restart: "no"

  api:
    image: demo/api:1.0
    depends_on:
      migrate:
        condition: service_completed_successfully
    restart: always
`

var migrateImages = []string{"demo/migrate:1.0", "demo/api:1.0"}

// webStack brings the web topology up with passing probes and returns
// the result.
func webStack(t *testing.T, r *Runner, engine *fakeEngine, dir string) *UpResult {
	t.Helper()

	writeFile(t, dir, "barge.yaml", webTopology)
	writeFile(t, dir, "db.env", webEnvFile)
	engine.seedImages(webImages...)

	result, err := r.Up(context.Background(), UpOptions{
		File:        filepath.Join(dir, "barge.yaml"),
		ProjectName: "app",
		Timeout:     10 * time.Second,
	})
	require.NoError(t, err)
	return result
}
