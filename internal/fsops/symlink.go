//go:build unix || windows

package fsops

import "os"

const symlinkPlatform = true

// os.Symlink picks a directory or file link from the target's kind on Windows
func symlink(target, link string) error {
	return os.Symlink(target, link)
}
