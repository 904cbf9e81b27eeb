package env

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/goccy/go-yaml"
)

// Mount is one host path made visible to candidates, type is bind or tmpfs
type Mount struct {
	Type     string `yaml:"type"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Readonly bool   `yaml:"readonly"`
	Data     string `yaml:"data"`
}

// Mounts is the mount.yaml content. The work dir and /tmp are always a
// private mount of the environment and must not be listed.
type Mounts struct {
	Mount []Mount `yaml:"mount"`
	Proc  bool    `yaml:"proc"`
}

func readMountConfig(p string) (*Mounts, error) {
	d, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var m Mounts
	if err := yaml.Unmarshal(d, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p, err)
	}
	return &m, nil
}

func parseMountConfig(m *Mounts) (*mount.Builder, error) {
	b := mount.NewBuilder()
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	for _, mt := range m.Mount {
		target := filepath.Clean(mt.Target)
		if filepath.IsAbs(target) {
			target = target[1:]
		}
		switch target {
		case "", ".", containerWorkDir[1:], "tmp":
			return nil, fmt.Errorf("mount target %q is reserved", mt.Target)
		}
		source := mt.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(wd, source)
		}
		switch mt.Type {
		case "bind":
			b.WithBind(source, target, mt.Readonly)
		case "tmpfs":
			b.WithTmpfs(target, mt.Data)
		default:
			return nil, fmt.Errorf("invalid mount type %q for %s", mt.Type, mt.Target)
		}
	}
	if m.Proc {
		b.WithProc()
	}
	return b, nil
}

// getDefaultMount is what a python interpreter from the distribution or
// from /usr/local needs
func getDefaultMount() *mount.Builder {
	return mount.NewBuilder().
		WithBind("/bin", "bin", true).
		WithBind("/lib", "lib", true).
		WithBind("/lib64", "lib64", true).
		WithBind("/usr", "usr", true).
		WithBind("/etc/alternatives", "etc/alternatives", true).
		// ssl and locale data read by the standard library
		WithBind("/etc/ssl/certs", "etc/ssl/certs", true).
		WithBind("/etc/localtime", "etc/localtime", true).
		WithBind("/dev/null", "dev/null", false).
		WithBind("/dev/urandom", "dev/urandom", false)
}

// loadMounts returns the read only system mounts from the mount config or
// the default
func loadMounts(c Config) (*mount.Builder, string, error) {
	if c.MountConf != "" {
		mc, err := readMountConfig(c.MountConf)
		switch {
		case err == nil:
			b, err := parseMountConfig(mc)
			return b, c.MountConf, err
		case !os.IsNotExist(err):
			return nil, "", err
		}
	}
	return getDefaultMount(), "default", nil
}
