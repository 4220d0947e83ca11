// Package fileutil holds the small file primitives the pipeline persists through.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackupTimeFormat is the timestamp layout embedded in backup file names.
const BackupTimeFormat = "20060102150405"

// EnsureParentDir creates parent directories for the given path if they do not exist.
func EnsureParentDir(filePath string) error {
	return os.MkdirAll(filepath.Dir(filePath), 0755)
}

// ReplaceFileAtomically renames tempPath to targetPath. On systems where
// cross-device rename fails, it falls back to remove-then-rename.
func ReplaceFileAtomically(tempPath, targetPath string) error {
	if err := os.Rename(tempPath, targetPath); err == nil {
		return nil
	}

	if err := os.Remove(targetPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	return os.Rename(tempPath, targetPath)
}

// WriteFileAtomically writes data to a sibling temp file and swaps it into place,
// so readers never observe a half-written cache or context file.
func WriteFileAtomically(targetPath string, data []byte, perm os.FileMode) error {
	if err := EnsureParentDir(targetPath); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(targetPath), filepath.Base(targetPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := ReplaceFileAtomically(tmpPath, targetPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", targetPath, err)
	}
	return nil
}

// CreateBackup copies filePath to "<filePath>.<YYYYmmddHHMMSS>.bak" and returns the backup path.
func CreateBackup(filePath string, now time.Time) (string, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for backup: %w", filePath, err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", filePath, err)
	}

	backupPath := fmt.Sprintf("%s.%s.bak", filePath, now.Format(BackupTimeFormat))
	if err := os.WriteFile(backupPath, content, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("failed to write backup %s: %w", backupPath, err)
	}
	return backupPath, nil
}
