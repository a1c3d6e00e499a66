package misc

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// ConfigTemplate is the commented example configuration shipped with the CLI.
//
//go:embed config.example.yaml
var ConfigTemplate []byte

// WriteConfigTemplate writes ConfigTemplate to dst. An existing file is left alone
// unless overwrite is set.
func WriteConfigTemplate(dst string, overwrite bool) error {
	if dst == "" {
		return fmt.Errorf("config template destination is required")
	}
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return fmt.Errorf("config file %s already exists", dst)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := out.Close(); errClose != nil {
			log.WithError(errClose).Warn("failed to close destination config file")
		}
	}()

	if _, err = out.Write(ConfigTemplate); err != nil {
		return err
	}
	return out.Sync()
}
