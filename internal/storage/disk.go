package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"wumen-backend/internal/model"
	"wumen-backend/pkg/logger"
)

// DiskStore 把每个 key 的会话快照存成一个 JSON 文件，
// 写入走临时文件 + rename，保证读到的永远是完整快照。
type DiskStore struct {
	dataDir string
	mu      sync.RWMutex
}

func NewDiskStore(dataDir string) *DiskStore {
	return &DiskStore{
		dataDir: dataDir,
	}
}

func (d *DiskStore) Init() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	logger.Info("Disk store initialized successfully")
	return nil
}

func (d *DiskStore) snapshotPath(key string) string {
	return filepath.Join(d.dataDir, key+".json")
}

func (d *DiskStore) Load(key string) ([]model.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	path := d.snapshotPath(key)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var sessions []model.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	// 旧快照兼容：角色标签归一化
	for i := range sessions {
		for j := range sessions[i].Messages {
			sessions[i].Messages[j].Role = model.NormalizeRole(sessions[i].Messages[j].Role)
		}
	}

	return sessions, nil
}

func (d *DiskStore) Save(key string, sessions []model.Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.snapshotPath(key)
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

func (d *DiskStore) Close() error {
	return nil
}

func (d *DiskStore) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().Unix()))

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	files, err := os.ReadDir(d.dataDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}

		src := filepath.Join(d.dataDir, file.Name())
		dst := filepath.Join(backupDir, file.Name())

		data, err := os.ReadFile(src)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}
