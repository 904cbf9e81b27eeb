// Package docker runs each process in a throwaway container with no network,
// a read-only root file system and the private work dir bind mounted at /w.
package docker

import (
	"fmt"
	"os"

	"github.com/moby/moby/client"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
)

const (
	containerWorkDir = "/w"
	containerUser    = "65534:65534" // nobody
	containerLabel   = "truth-engine"
	defaultImage     = "python:3.12-slim"
)

var _ pool.EnvBuilder = &Builder{}

// Config specifies configuration to build environment builder
type Config struct {
	// Image is the runtime image, python:3.12-slim if empty
	Image string
	// Root is the parent directory for private work dirs, os.TempDir if empty
	Root string
}

// Builder creates docker environments sharing one api client
type Builder struct {
	cli   *client.Client
	image string
	root  string
}

// NewBuilder connects to the docker daemon from the environment
func NewBuilder(c Config) (*Builder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	image := c.Image
	if image == "" {
		image = defaultImage
	}
	return &Builder{
		cli:   cli,
		image: image,
		root:  c.Root,
	}, nil
}

// Build creates an environment with a private work dir
func (b *Builder) Build() (pool.Environment, error) {
	wd, err := os.MkdirTemp(b.root, "docker-")
	if err != nil {
		return nil, fmt.Errorf("docker: failed to create work dir: %w", err)
	}
	// writable by the unprivileged container user
	if err := os.Chmod(wd, 0777); err != nil {
		os.RemoveAll(wd)
		return nil, fmt.Errorf("docker: failed to chmod work dir: %w", err)
	}
	return &environment{
		cli:   b.cli,
		image: b.image,
		wd:    wd,
	}, nil
}

// Close closes the api client
func (b *Builder) Close() error {
	return b.cli.Close()
}
