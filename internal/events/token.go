package events

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"forgesync/internal/config"
)

// ResolveToken finds the channel credential. Resolution order: explicit
// override, configured value (file or FORGE_SOCKET_TOKEN), persisted token
// file under the data dir. Returns empty when nothing is configured.
func ResolveToken(cfg *config.Config, override string) (string, error) {
	if token := strings.TrimSpace(override); token != "" {
		return token, nil
	}
	if token := strings.TrimSpace(cfg.Socket.Token); token != "" {
		return token, nil
	}

	data, err := os.ReadFile(cfg.TokenFilePath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// PersistToken stores the credential under the data dir so later runs can
// resolve it without configuration.
func PersistToken(cfg *config.Config, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("refusing to persist empty token")
	}

	path := cfg.TokenFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
