// Package storage persists the local account identity under the anonchat
// home directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Identity is the durable local account: the server-assigned uid and the
// last-known nickname. The uid is the only credential this protocol has, so
// the file is written with owner-only permissions.
type Identity struct {
	UID         string `json:"uid"`
	Nickname    string `json:"nickname,omitempty"`
	UpdatedAtMs int64  `json:"updatedAtMs,omitempty"`
}

// LoadIdentity reads the persisted identity.
//
// ok is false when no identity has been saved yet.
func LoadIdentity(homeDir string) (id Identity, ok bool, err error) {
	path, err := identityPath(homeDir)
	if err != nil {
		return Identity{}, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Identity{}, false, nil
		}
		return Identity{}, false, err
	}
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, false, err
	}
	if strings.TrimSpace(id.UID) == "" {
		return Identity{}, false, fmt.Errorf("identity file %s has no uid", path)
	}
	return id, true, nil
}

// SaveIdentity writes the identity to disk atomically.
func SaveIdentity(homeDir string, id Identity) error {
	if strings.TrimSpace(id.UID) == "" {
		return fmt.Errorf("missing uid")
	}
	path, err := identityPath(homeDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	id.UpdatedAtMs = time.Now().UnixMilli()
	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// DeleteIdentity removes the persisted identity. A missing file is fine.
func DeleteIdentity(homeDir string) error {
	path, err := identityPath(homeDir)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func identityPath(homeDir string) (string, error) {
	if strings.TrimSpace(homeDir) == "" {
		return "", fmt.Errorf("missing home directory")
	}
	return filepath.Join(homeDir, "identity.json"), nil
}
