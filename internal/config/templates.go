package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "instant", "":
		return instantTemplate, nil
	case "memory":
		return memoryTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const instantTemplate = `[cache]
dir = "local/instant"
in_memory = false
buffer_size = 4096
max_entry_bytes = 67108864

[log]
level = "info"
file = ""
timestamp = true
no_color = false
`

const memoryTemplate = `[cache]
in_memory = true
buffer_size = 4096
max_entry_bytes = 8388608

[log]
level = "debug"
timestamp = false
`
