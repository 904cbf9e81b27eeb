package env

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/criyle/go-sandbox/pkg/cgroup"
	ddbus "github.com/godbus/dbus/v5"
	"github.com/venkatnarayana7/Python-Debugger/env/runcgroup"
	"go.uber.org/zap"
)

var errNoSystemd = errors.New("systemd bus unavailable")

// newCandidateCgroup takes over a cgroup subtree: the server moves into
// <prefix>/api and every candidate run gets its own cgroup below
// <prefix>/candidates. A nil parent without error selects rlimit / rusage mode.
func newCandidateCgroup(c Config, logger *zap.Logger) (*runcgroup.Parent, *cgroup.Controllers, error) {
	if c.CgroupPrefix == "" {
		return nil, nil, nil
	}
	fallback := func(reason string, err error) (*runcgroup.Parent, *cgroup.Controllers, error) {
		if c.NoFallback {
			return nil, nil, fmt.Errorf("%s: %w", reason, err)
		}
		logger.Warn(reason+", falling back to rlimit / rusage mode", zap.Error(err))
		return nil, nil, nil
	}

	prefix := c.CgroupPrefix
	ct, err := cgroup.GetAvailableController()
	if err != nil {
		return fallback("no cgroup controller available", err)
	}
	if cgroup.DetectedCgroupType == cgroup.TypeV2 {
		scope, err := delegateScope(c.CgroupPrefix, logger)
		switch {
		case err == nil:
			prefix = scope
		case errors.Is(err, errNoSystemd):
			logger.Info("assuming running in container, taking control of the whole cgroupfs", zap.Error(err))
			prefix = ""
		default:
			return nil, nil, err
		}
		if ct, err = cgroup.GetAvailableControllerWithPrefix(prefix); err != nil {
			return fallback("no cgroup controller available", err)
		}
	}

	base, err := cgroup.New(prefix, ct)
	if err != nil {
		if os.Getuid() == 0 {
			return nil, nil, fmt.Errorf("create cgroup %s: %w", prefix, err)
		}
		return fallback("no permission on cgroup", err)
	}
	if _, err := base.Nest("api"); err != nil && os.Getuid() != 0 {
		base.Destroy()
		return fallback("failed to move server into the api cgroup", err)
	}
	cg, err := base.New("candidates")
	if err != nil {
		return fallback("failed to create the candidates cgroup", err)
	}
	if !ct.Memory {
		cg.Destroy()
		return fallback("memory controller is not enabled", errors.New("memory controller missing"))
	}
	if !ct.Pids {
		logger.Warn("pids controller is not enabled, candidate process count is not limited")
	}
	logger.Info("candidate cgroup ready", zap.Any("cgroup", cg), zap.Strings("controllers", ct.Names()))
	return runcgroup.New(cg), ct, nil
}

// delegateScope starts a transient systemd scope that owns the server and
// delegates its subtree, returning the scope cgroup
func delegateScope(name string, logger *zap.Logger) (string, error) {
	ctx := context.TODO()
	var (
		conn *dbus.Conn
		err  error
	)
	if os.Getuid() == 0 {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	} else {
		conn, err = dbus.NewUserConnectionContext(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errNoSystemd, err)
	}
	defer conn.Close()

	scope := name + ".scope"
	logger.Info("creating transient unit", zap.String("scope", scope))
	properties := []dbus.Property{
		dbus.PropDescription("truth engine - candidate repair verification sandbox"),
		dbus.PropPids(uint32(os.Getpid())),
		{Name: "Delegate", Value: ddbus.MakeVariant(true)},
	}
	ch := make(chan string, 1)
	if _, err := conn.StartTransientUnitContext(ctx, scope, "replace", properties, ch); err != nil {
		return "", fmt.Errorf("start transient unit %s: %w", scope, err)
	}
	if s := <-ch; s != "done" {
		return "", fmt.Errorf("start transient unit %s: %s", scope, s)
	}
	return cgroup.GetCurrentCgroupPrefix()
}

func cgroupInfo(p *runcgroup.Parent, ct *cgroup.Controllers) (int, []string) {
	if p == nil || ct == nil {
		return 0, []string{}
	}
	return int(cgroup.DetectedCgroupType), ct.Names()
}
