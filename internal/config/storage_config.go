package config

import (
	"os"
	"path/filepath"
)

type StorageConfig interface {
	GetSnapshotDir() string
	GetSnapshotNamespace() string
	GetSnapshotSecret() string
}

type storageFile struct {
	Dir       string `toml:"dir"`
	Namespace string `toml:"namespace"`
	Secret    string `toml:"secret"`
}

type Storage struct {
	file storageFile
}

var _ StorageConfig = Storage{}

func (s Storage) GetSnapshotDir() string {
	return GetEnv("LEGID_SNAPSHOT_DIR", orDefault(s.file.Dir, defaultSnapshotDir()))
}

func (s Storage) GetSnapshotNamespace() string {
	return GetEnv("LEGID_SNAPSHOT_NAMESPACE", orDefault(s.file.Namespace, "legid"))
}

// GetSnapshotSecret enables at-rest sealing of snapshots when non-empty.
func (s Storage) GetSnapshotSecret() string {
	return GetEnv("LEGID_SNAPSHOT_SECRET", s.file.Secret)
}

func defaultSnapshotDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "legid")
}
