package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// descriptor is the bit of key material roomctl must remember between
// invocations that room.Config itself doesn't carry: which room this
// data directory belongs to and the encryption key a pairing grant (or
// Create) handed out. Nothing sensitive about writer identity lives
// here — that's the identity key file pkg/identity already manages.
type descriptor struct {
	RoomKeyHex string `json:"room_key"`
	EncKeyHex  string `json:"enc_key"`
}

func descriptorPath(dataDir string) string {
	return filepath.Join(dataDir, "descriptor.json")
}

func saveDescriptor(dataDir string, roomKey, encKey []byte) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	d := descriptor{RoomKeyHex: hex.EncodeToString(roomKey), EncKeyHex: hex.EncodeToString(encKey)}
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(descriptorPath(dataDir), raw, 0o600)
}

func loadDescriptor(dataDir string) (roomKey, encKey []byte, err error) {
	raw, err := os.ReadFile(descriptorPath(dataDir))
	if err != nil {
		return nil, nil, fmt.Errorf("no room in %s yet (run 'roomctl create' or 'roomctl join' first): %w", dataDir, err)
	}
	var d descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, nil, err
	}
	roomKey, err = hex.DecodeString(d.RoomKeyHex)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt descriptor room_key: %w", err)
	}
	encKey, err = hex.DecodeString(d.EncKeyHex)
	if err != nil {
		return nil, nil, fmt.Errorf("corrupt descriptor enc_key: %w", err)
	}
	return roomKey, encKey, nil
}
