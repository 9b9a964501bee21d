//go:build darwin

package shell

func (s *Shell) openDirectory(path string) error {
	return s.start("open", path)
}

func (s *Shell) revealFile(path string) error {
	return s.start("open", "-R", path)
}

func (s *Shell) revealDirectory(path string) error {
	return s.start("open", path)
}
