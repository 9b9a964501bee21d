package relay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// InfoFileName is written to the app data dir while the relay runs
const InfoFileName = "relay.json"

// Info tells plugins how to reach the relay
type Info struct {
	Port  int    `json:"port"`
	Token string `json:"token"`
}

// WriteInfo writes the connection info to dir/relay.json, readable only by the user
func (s *Server) WriteInfo(dir string) (string, error) {
	data, err := json.MarshalIndent(Info{Port: s.Port(), Token: s.Token()}, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, InfoFileName)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write relay info: %w", err)
	}
	return path, nil
}

// ReadInfo reads connection info written by WriteInfo
func ReadInfo(dir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(dir, InfoFileName))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse relay info: %w", err)
	}
	return &info, nil
}

// RemoveInfo deletes dir/relay.json
func RemoveInfo(dir string) error {
	err := os.Remove(filepath.Join(dir, InfoFileName))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
