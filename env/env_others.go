//go:build !linux

package env

import (
	"fmt"
	"runtime"

	"github.com/venkatnarayana7/Python-Debugger/env/docker"
	"github.com/venkatnarayana7/Python-Debugger/env/pool"
	"go.uber.org/zap"
)

// NewBuilder build a environment builder, only the docker backend is
// available outside linux
func NewBuilder(c Config, logger *zap.Logger) (pool.EnvBuilder, map[string]any, error) {
	if c.Backend != BackendDocker {
		return nil, nil, fmt.Errorf("sandbox backend %q is not supported on %s, use %q", c.Backend, runtime.GOOS, BackendDocker)
	}
	b, err := docker.NewBuilder(docker.Config{
		Image: c.DockerImage,
		Root:  c.WorkDir,
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("created docker environment builder", zap.String("image", c.DockerImage))
	return b, map[string]any{
		"backend": BackendDocker,
		"image":   c.DockerImage,
		"workDir": c.WorkDir,
	}, nil
}
