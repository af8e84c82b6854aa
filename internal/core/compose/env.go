package compose

import "sort"

// =============================================================================
// Environment Merging
// =============================================================================

// MergeEnv layers environment maps; later layers win. Used to combine env
// files with inline service environment (inline last). Nil layers are
// skipped; the result is never nil.
func MergeEnv(layers ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			if k == "" {
				continue
			}
			merged[k] = v
		}
	}
	return merged
}

// FormatEnv renders an environment map as sorted KEY=value pairs, the form
// the engine expects. Sorting keeps container configs deterministic across
// runs of the same topology.
func FormatEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
