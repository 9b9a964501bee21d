//go:build windows

package shell

func (s *Shell) openDirectory(path string) error {
	return s.start("explorer", path)
}

func (s *Shell) revealFile(path string) error {
	return s.start("explorer", "/select,"+path)
}

func (s *Shell) revealDirectory(path string) error {
	return s.start("explorer", path)
}
