//go:build !unix && !windows

package fsops

import "fmt"

const symlinkPlatform = false

func symlink(target, link string) error {
	return fmt.Errorf("symlink creation: %w", ErrUnsupported)
}
