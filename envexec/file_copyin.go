package envexec

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// copyIn writes file contents into the environment work dir in parallel
func copyIn(m Environment, copyIn map[string][]byte) error {
	if len(copyIn) == 0 {
		return nil
	}
	var g errgroup.Group
	for name, content := range copyIn {
		g.Go(func() error {
			if err := checkFileName(name); err != nil {
				return err
			}
			f, err := m.Open(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return fmt.Errorf("copyin: %s: %w", name, err)
			}
			_, err = f.Write(content)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("copyin: %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// checkFileName accepts plain file names only
func checkFileName(name string) error {
	if !filepath.IsLocal(name) || filepath.Base(name) != name {
		return fmt.Errorf("copyin: invalid file name %q", name)
	}
	return nil
}

// OpenInDir opens name inside dir through os.Root, for environments whose
// work dir is a host directory
func OpenInDir(dir, name string, flags int, perm os.FileMode) (*os.File, error) {
	r, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.OpenFile(name, flags, perm)
}
