package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SetEnvString updates an environment variable for the running process and
// persists it to the .env file. Comment lines, blank lines and the relative
// order of entries are preserved; an absent variable is appended at the end.
//
// godotenv is used only for reading: its writer re-serializes the whole map
// and would discard comments and ordering.
func SetEnvString(path, key, value string) error {
	if err := os.Setenv(key, value); err != nil {
		return err
	}
	return updateEnvFile(path, key, value)
}

// SetEnvBool validates and persists a boolean setting. Accepted spellings are
// true/false, 1/0 and yes/no.
func SetEnvBool(path, key, value string) (bool, error) {
	norm := strings.ToLower(strings.TrimSpace(value))
	switch norm {
	case "true", "false", "1", "0", "yes", "no":
	default:
		return false, fmt.Errorf("invalid boolean value %q (must be true/false)", value)
	}
	if err := SetEnvString(path, key, norm); err != nil {
		return false, err
	}
	return norm == "true" || norm == "1" || norm == "yes", nil
}

// SetEnvInt validates and persists an integer setting.
func SetEnvInt(path, key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q", value)
	}
	if err := SetEnvString(path, key, strconv.Itoa(n)); err != nil {
		return 0, err
	}
	return n, nil
}

func updateEnvFile(path, key, value string) error {
	var lines []string
	if raw, err := os.ReadFile(path); err == nil {
		lines = strings.Split(string(raw), "\n")
		// A trailing newline yields one empty trailing element; drop it so we
		// do not accumulate blank lines on every write.
		if n := len(lines); n > 0 && lines[n-1] == "" {
			lines = lines[:n-1]
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	prefix := key + "="
	found := false
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			lines[i] = prefix + value
			found = true
		}
	}
	if !found {
		lines = append(lines, prefix+value)
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}
