package envexec

import (
	"fmt"
	"io"
	"os"

	"github.com/criyle/go-sandbox/runner"
	"golang.org/x/sync/errgroup"
)

const outputFilePattern = "truth-engine-out-*"

// newOutputFiles creates anonymous files to capture stdout and stderr
func newOutputFiles() (stdout, stderr *os.File, err error) {
	if stdout, err = newOutputFile(); err != nil {
		return nil, nil, err
	}
	if stderr, err = newOutputFile(); err != nil {
		stdout.Close()
		return nil, nil, err
	}
	return stdout, stderr, nil
}

func newTempOutputFile() (*os.File, error) {
	f, err := os.CreateTemp("", outputFilePattern)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	os.Remove(f.Name())
	return f, nil
}

// collectOutput reads the captured files in parallel, each bounded by limit.
// It returns runner.StatusOutputLimitExceeded when any file is over the limit.
func collectOutput(limit Size, files ...*os.File) ([][]byte, error) {
	var g errgroup.Group
	rt := make([][]byte, len(files))
	for i, f := range files {
		g.Go(func() error {
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				return err
			}
			var r io.Reader = f
			if limit > 0 {
				r = io.LimitReader(f, int64(limit)+1)
			}
			b, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			if limit > 0 && int64(len(b)) > int64(limit) {
				rt[i] = b[:limit]
				return runner.StatusOutputLimitExceeded
			}
			rt[i] = b
			return nil
		})
	}
	err := g.Wait()
	return rt, err
}
