//go:build !linux

package envexec

import "os"

func newOutputFile() (*os.File, error) {
	return newTempOutputFile()
}
