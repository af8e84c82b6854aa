package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/build"
)

// =============================================================================
// Image Build
// =============================================================================

// BuildImage archives the build context, sends it to the daemon, and
// streams the build until completion. Returns the built image ID when the
// daemon reports one.
func (d *DockerClient) BuildImage(ctx context.Context, spec BuildSpec) (string, error) {
	dockerfile := spec.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	buildContext, err := tarBuildContext(spec.ContextDir)
	if err != nil {
		return "", NewDockerError("BuildImage", "image", spec.Tag, err.Error(), err)
	}

	args := make(map[string]*string, len(spec.Args))
	for k, v := range spec.Args {
		v := v
		args[k] = &v
	}

	var tags []string
	if spec.Tag != "" {
		tags = []string{spec.Tag}
	}

	resp, err := d.cli.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:       tags,
		Dockerfile: dockerfile,
		BuildArgs:  args,
		Labels:     spec.Labels,
		NoCache:    spec.NoCache,
		Remove:     true,
	})
	if err != nil {
		return "", NewDockerError("BuildImage", "image", spec.Tag, err.Error(), ErrBuildFailed)
	}
	defer resp.Body.Close()

	imageID, err := drainBuildOutput(resp.Body)
	if err != nil {
		return "", NewDockerError("BuildImage", "image", spec.Tag, err.Error(), ErrBuildFailed)
	}

	return imageID, nil
}

// drainBuildOutput consumes the daemon's JSON message stream and returns
// the built image ID. A message carrying an error aborts the build.
func drainBuildOutput(r io.Reader) (string, error) {
	type buildMessage struct {
		Stream string `json:"stream"`
		Error  string `json:"error"`
		Aux    struct {
			ID string `json:"ID"`
		} `json:"aux"`
	}

	var imageID string
	dec := json.NewDecoder(r)
	for {
		var msg buildMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("decode build output: %w", err)
		}
		if msg.Error != "" {
			return "", errors.New(msg.Error)
		}
		if msg.Aux.ID != "" {
			imageID = msg.Aux.ID
		}
	}

	return imageID, nil
}

// tarBuildContext archives a directory into an in-memory tar stream.
// Entries are written in lexical walk order with fixed timestamps and
// owners so identical trees produce identical archives.
func tarBuildContext(dir string) (*bytes.Reader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("build context: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("build context %s is not a directory", dir)
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)

		fi, err := entry.Info()
		if err != nil {
			return err
		}

		link := ""
		if fi.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if entry.IsDir() {
			hdr.Name += "/"
		}
		hdr.ModTime = time.Unix(0, 0)
		hdr.AccessTime = time.Time{}
		hdr.ChangeTime = time.Time{}
		hdr.Uid = 0
		hdr.Gid = 0
		hdr.Uname = ""
		hdr.Gname = ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		if _, err := io.Copy(tw, f); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		tw.Close()
		return nil, fmt.Errorf("archive build context: %w", err)
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("archive build context: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}
