package misc

import (
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Separator used to visually group related log lines.
var credentialSeparator = strings.Repeat("-", 67)

// LogSavingCredentials prints where auth material is being persisted.
func LogSavingCredentials(location string) {
	if location == "" {
		return
	}
	if !strings.Contains(location, "://") {
		location = filepath.Clean(location)
	}
	fmt.Printf("Saving credentials to %s\n", location)
}

// LogCredentialSeparator adds a visual separator to group auth/key processing logs.
func LogCredentialSeparator() {
	log.Debug(credentialSeparator)
}
