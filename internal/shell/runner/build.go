package runner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bargehq/barge/internal/core/compose"
	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/plan"
	"github.com/bargehq/barge/internal/shell/docker"
)

// =============================================================================
// Image Resolution
// =============================================================================

// resolveImages makes every service's image available. Build-backed
// services get a deterministic tag derived from the fingerprint of their
// build inputs: unchanged inputs reuse the existing image, any changed
// byte produces a new tag and a fresh build. Plain images are pulled when
// the engine does not have them.
//
// Fingerprint failures abort the up: without a tag there is nothing to
// plan. Build and pull failures stay per-service: the failure reaches the
// service's launcher, which blocks its dependents, while unrelated
// services proceed.
func (r *Runner) resolveImages(ctx context.Context, topo *compose.Topology, baseDir string, stack *domain.Stack, force bool) (map[string]string, map[string]error, error) {
	tags := make(map[string]string)
	imageErrs := make(map[string]error)

	for _, svc := range topo.Services {
		if svc.Build != nil {
			tag, err := r.buildTag(stack.Name, svc, baseDir)
			if err != nil {
				return nil, nil, err
			}
			tags[svc.Name] = tag
			if err := r.ensureBuilt(ctx, stack, svc, baseDir, tag, force); err != nil {
				imageErrs[svc.Name] = err
			}
			continue
		}
		if err := r.ensurePulled(ctx, stack, svc); err != nil {
			imageErrs[svc.Name] = err
		}
	}
	return tags, imageErrs, nil
}

// buildTag fingerprints a service's build inputs into an image tag.
func (r *Runner) buildTag(stackName string, svc compose.Service, baseDir string) (string, error) {
	files, err := digestBuildContext(buildContextDir(svc, baseDir))
	if err != nil {
		return "", fmt.Errorf("service %q: %w", svc.Name, err)
	}

	extra := []string{"dockerfile=" + dockerfileName(svc)}
	argKeys := make([]string, 0, len(svc.Build.Args))
	for k := range svc.Build.Args {
		argKeys = append(argKeys, k)
	}
	sort.Strings(argKeys)
	for _, k := range argKeys {
		extra = append(extra, "arg:"+k+"="+svc.Build.Args[k])
	}

	return plan.ImageRef(stackName, svc.Name, plan.Fingerprint(files, extra...)), nil
}

// ensureBuilt builds the tagged image unless an image for the current
// fingerprint already exists.
func (r *Runner) ensureBuilt(ctx context.Context, stack *domain.Stack, svc compose.Service, baseDir, tag string, force bool) error {
	if !force {
		exists, err := r.docker.ImageExists(ctx, tag)
		if err != nil {
			return fmt.Errorf("inspect image %s: %w", tag, err)
		}
		if exists {
			r.logger.Debug("image up to date", "service", svc.Name, "tag", tag)
			return nil
		}
	}

	r.record(ctx, stack.ID, domain.EventImageBuilding, svc.Name)
	r.logger.Info("building image", "stack", stack.Name, "service", svc.Name, "tag", tag)

	_, err := r.docker.BuildImage(ctx, docker.BuildSpec{
		ContextDir: buildContextDir(svc, baseDir),
		Dockerfile: dockerfileName(svc),
		Tag:        tag,
		Args:       svc.Build.Args,
		Labels: map[string]string{
			plan.LabelManaged: "true",
			plan.LabelStack:   stack.Name,
			plan.LabelService: svc.Name,
		},
		NoCache: force,
	})
	if err != nil {
		return fmt.Errorf("build image for %q: %w", svc.Name, err)
	}

	r.record(ctx, stack.ID, domain.EventImageBuilt, svc.Name)
	return nil
}

// ensurePulled pulls the declared image when the engine lacks it.
func (r *Runner) ensurePulled(ctx context.Context, stack *domain.Stack, svc compose.Service) error {
	exists, err := r.docker.ImageExists(ctx, svc.Image)
	if err != nil {
		return fmt.Errorf("inspect image %s: %w", svc.Image, err)
	}
	if exists {
		return nil
	}

	r.record(ctx, stack.ID, domain.EventImagePulling, svc.Name)
	r.logger.Info("pulling image", "stack", stack.Name, "service", svc.Name, "image", svc.Image)

	if err := r.docker.PullImage(ctx, svc.Image, docker.PullOptions{}); err != nil {
		return fmt.Errorf("pull image %s: %w", svc.Image, err)
	}

	r.record(ctx, stack.ID, domain.EventImagePulled, svc.Name)
	return nil
}

// buildContextDir resolves a service's build context against the topology
// file's directory.
func buildContextDir(svc compose.Service, baseDir string) string {
	dir := svc.Build.Context
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}

func dockerfileName(svc compose.Service) string {
	if svc.Build.Dockerfile != "" {
		return svc.Build.Dockerfile
	}
	return "Dockerfile"
}

// digestBuildContext walks a build context and digests every regular
// file. The .git directory is skipped: its churn is not a build input.
func digestBuildContext(dir string) ([]plan.FileDigest, error) {
	var files []plan.FileDigest
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files = append(files, plan.FileDigest{
			Path:   filepath.ToSlash(rel),
			Mode:   uint32(info.Mode().Perm()),
			Digest: plan.DigestBytes(content),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("digest build context %s: %w", dir, err)
	}
	return files, nil
}
