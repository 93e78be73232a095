// Package identity holds the local identity attached to verifications and
// used to namespace the vote ledger.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/parsaabbasian/unispot-sync/pkg/storage"
)

// Identity names the local user plus a durable per-installation device id.
// The device id, not the display name, keys the vote ledger: display names
// collide.
type Identity struct {
	Name     string
	Email    string
	DeviceID string
}

const deviceIDFile = "device_id"

// Load reads the persisted device id, minting and persisting a fresh one on
// first run, and combines it with the configured display identity.
func Load(store *storage.LocalStorage, name, email string) (Identity, error) {
	if name == "" {
		name = "Student"
	}

	raw, err := store.Load(deviceIDFile)
	if err != nil && !errors.Is(err, storage.ErrNotExist) {
		return Identity{}, fmt.Errorf("load device id: %w", err)
	}

	deviceID := strings.TrimSpace(string(raw))
	if deviceID == "" {
		deviceID = uuid.NewString()
		if err := store.Save(deviceIDFile, []byte(deviceID)); err != nil {
			return Identity{}, fmt.Errorf("persist device id: %w", err)
		}
	}

	return Identity{Name: name, Email: email, DeviceID: deviceID}, nil
}
