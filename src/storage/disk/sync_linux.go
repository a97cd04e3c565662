//go:build linux

package disk

import (
	"os"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

func syncData(f afero.File) error {
	if osFile, ok := f.(*os.File); ok {
		return unix.Fdatasync(int(osFile.Fd()))
	}
	return f.Sync()
}
