// Package file 头像文件存储：本地目录、MinIO 或 S3
package file

import (
	"context"
	"errors"
	"strings"
)

// ErrNotExist 文件不存在
var ErrNotExist = errors.New("file does not exist")

// Storage 文件存储接口
// key 是相对路径，例如 bots/3.png
type Storage interface {
	// Save 写入文件，返回访问 URL
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get 读取文件，不存在时返回 ErrNotExist
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete 删除文件，不存在时不报错
	Delete(ctx context.Context, key string) error
	// URL 文件的访问 URL
	URL(key string) string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
	StorageTypeS3    StorageType = "s3"
)

// keyFromURL 去掉 URL 前缀得到 key，不是本存储的 URL 时返回 false
func keyFromURL(prefix, url string) (string, bool) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}
