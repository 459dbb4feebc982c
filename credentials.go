package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// BridgeCredentials holds the API credentials for a paired Hue bridge.
type BridgeCredentials struct {
	Username  string `json:"username"`
	Clientkey string `json:"clientkey"`
}

// CredentialStore persists bridge credentials as a JSON map keyed by
// bridge id.
type CredentialStore struct {
	path string
}

// DefaultCredentialStore returns the store at credentials.json in the
// colco directory.
func DefaultCredentialStore() (*CredentialStore, error) {
	path, err := appPath("credentials.json")
	if err != nil {
		return nil, err
	}
	return &CredentialStore{path: path}, nil
}

func (s *CredentialStore) readAll() (map[string]BridgeCredentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var creds map[string]BridgeCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (s *CredentialStore) writeAll(all map[string]BridgeCredentials) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Load returns the credentials stored for bridgeID. A missing file or
// entry reports false with no error.
func (s *CredentialStore) Load(bridgeID string) (BridgeCredentials, bool, error) {
	all, err := s.readAll()
	if errors.Is(err, os.ErrNotExist) {
		return BridgeCredentials{}, false, nil
	}
	if err != nil {
		return BridgeCredentials{}, false, err
	}
	bc, ok := all[bridgeID]
	return bc, ok, nil
}

// Save stores creds for bridgeID, keeping other bridges' entries. The
// directory is created with 0700 and the file with 0600.
func (s *CredentialStore) Save(bridgeID string, creds BridgeCredentials) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	all, err := s.readAll()
	if err != nil || all == nil {
		all = make(map[string]BridgeCredentials)
	}
	all[bridgeID] = creds
	return s.writeAll(all)
}

// Delete removes the credentials stored for bridgeID.
func (s *CredentialStore) Delete(bridgeID string) error {
	all, err := s.readAll()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	delete(all, bridgeID)
	return s.writeAll(all)
}
