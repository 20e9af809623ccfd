package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// ErrConfigExists is returned by WriteDefault when the target file exists.
var ErrConfigExists = errors.New("config file already exists")

// DefaultTOML renders every key at its default value as TOML.
func DefaultTOML() ([]byte, error) {
	data, err := toml.Marshal(defaultViper().AllSettings())
	if err != nil {
		return nil, fmt.Errorf("marshal defaults: %w", err)
	}
	return data, nil
}

// WriteDefault writes a starter config file to path. It never overwrites.
func WriteDefault(path string) error {
	data, err := DefaultTOML()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
