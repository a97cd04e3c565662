//go:build !linux

package disk

import "github.com/spf13/afero"

func syncData(f afero.File) error {
	return f.Sync()
}
