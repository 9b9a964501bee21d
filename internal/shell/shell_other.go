//go:build !windows && !darwin && !linux

package shell

func (s *Shell) openDirectory(path string) error {
	return s.openFile(path)
}

func (s *Shell) revealFile(path string) error {
	return ErrUnsupported
}

func (s *Shell) revealDirectory(path string) error {
	return s.openFile(path)
}
