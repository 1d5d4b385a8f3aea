package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// tempSuffix 临时文件后缀
const tempSuffix = ".tmp"

// WriteFile 原子写文件
// 先写同目录临时文件并 fsync，再 rename 覆盖目标。
// 读者要么看到旧内容，要么看到完整的新内容。
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, tempName(filepath.Base(path)))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// rename 失败时临时文件可能残留，下次 Open 时清理
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// tempName .<base>.<pid>.<unixnano>.tmp
func tempName(base string) string {
	return fmt.Sprintf(".%s.%d.%d%s", base, os.Getpid(), time.Now().UnixNano(), tempSuffix)
}

// isTempFile 判断是否为 WriteFile 遗留的临时文件
func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

// RemoveStaleTemps 删除目录下遗留的临时文件，返回删除数量
func RemoveStaleTemps(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !isTempFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
