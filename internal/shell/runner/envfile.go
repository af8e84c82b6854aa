package runner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/dotenv"

	"github.com/bargehq/barge/internal/core/compose"
)

// =============================================================================
// Env File Loading
// =============================================================================

// readEnvFile parses one KEY=VALUE env file.
func readEnvFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	env, err := dotenv.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return env, nil
}

// InterpolationEnv builds the ${VAR} interpolation environment for a
// topology: env files merged in order, later files winning, with the
// host environment winning over all of them.
func InterpolationEnv(baseDir string, envFiles []string) (map[string]string, error) {
	fileEnv, err := loadEnvFiles(baseDir, envFiles)
	if err != nil {
		return nil, err
	}
	return compose.MergeEnv(fileEnv, osEnviron()), nil
}

// loadEnvFiles merges env files in order, later files winning. Relative
// paths are resolved against baseDir.
func loadEnvFiles(baseDir string, paths []string) (map[string]string, error) {
	merged := make(map[string]string)
	for _, p := range paths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		env, err := readEnvFile(p)
		if err != nil {
			return nil, err
		}
		merged = compose.MergeEnv(merged, env)
	}
	return merged, nil
}

// serviceEnvFiles reads every service's env_file list into per-service
// maps for the planner. Relative paths are resolved against the topology
// file's directory.
func serviceEnvFiles(baseDir string, topo *compose.Topology) (map[string]map[string]string, error) {
	result := make(map[string]map[string]string)
	for _, svc := range topo.Services {
		if len(svc.EnvFiles) == 0 {
			continue
		}
		env, err := loadEnvFiles(baseDir, svc.EnvFiles)
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", svc.Name, err)
		}
		result[svc.Name] = env
	}
	return result, nil
}

// osEnviron converts the process environment into a map for ${VAR}
// interpolation.
func osEnviron() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
