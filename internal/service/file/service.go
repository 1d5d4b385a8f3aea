package file

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/model"
)

// AvatarKind 头像归属
type AvatarKind string

const (
	AvatarBot  AvatarKind = "bots"
	AvatarUser AvatarKind = "users"
)

// Service 头像文件服务
type Service struct {
	storage Storage
	prefix  string
	logger  *zap.Logger
}

// NewService 创建文件服务
func NewService(storage Storage, logger *zap.Logger) *Service {
	return &Service{
		storage: storage,
		prefix:  strings.TrimSuffix(storage.URL(""), "/"),
		logger:  logger,
	}
}

// NewStorageFromConfig 按配置创建存储后端
func NewStorageFromConfig(ctx context.Context, cfg *config.FileConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath, cfg.URLPrefix)

	case StorageTypeMinIO:
		m := cfg.MinIO
		if m.Endpoint == "" || m.AccessKey == "" || m.SecretKey == "" || m.Bucket == "" {
			return nil, fmt.Errorf("missing required MinIO config")
		}
		return NewMinIOStorage(ctx, &MinIOConfig{
			Endpoint:   m.Endpoint,
			AccessKey:  m.AccessKey,
			SecretKey:  m.SecretKey,
			BucketName: m.Bucket,
			UseSSL:     m.UseSSL,
			URLPrefix:  m.URLPrefix,
		})

	case StorageTypeS3:
		return NewS3Storage(ctx, &S3Config{
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			URLPrefix: cfg.S3.URLPrefix,
		})

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// SaveAvatar 保存 PNG 头像，返回访问 URL
func (s *Service) SaveAvatar(ctx context.Context, kind AvatarKind, id string, png []byte) (string, error) {
	key := fmt.Sprintf("%s/%s.png", kind, id)
	url, err := s.storage.Save(ctx, key, png, "image/png")
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}
	return url, nil
}

// ReplaceAvatar 写入新头像，返回 URL 和撤销函数
// 新旧头像同名时先读出旧文件，撤销时写回；否则撤销即删除新文件。
// 调用方在记录提交失败时执行撤销。
func (s *Service) ReplaceAvatar(ctx context.Context, kind AvatarKind, id string, png []byte, oldURL string) (string, func(context.Context), error) {
	key := fmt.Sprintf("%s/%s.png", kind, id)

	var prev []byte
	if !IsDefaultAvatar(oldURL) {
		if oldKey, ok := keyFromURL(s.prefix, oldURL); ok && oldKey == key {
			data, err := s.storage.Get(ctx, key)
			switch {
			case err == nil:
				prev = data
			case !errors.Is(err, ErrNotExist):
				return "", nil, fmt.Errorf("failed to read previous avatar: %w", err)
			}
		}
	}

	url, err := s.storage.Save(ctx, key, png, "image/png")
	if err != nil {
		return "", nil, fmt.Errorf("failed to save avatar: %w", err)
	}

	undo := func(ctx context.Context) {
		var err error
		if prev != nil {
			_, err = s.storage.Save(ctx, key, prev, "image/png")
		} else {
			err = s.storage.Delete(ctx, key)
		}
		if err != nil {
			s.logger.Error("failed to restore avatar", zap.String("key", key), zap.Error(err))
		}
	}
	return url, undo, nil
}

// RemoveAvatar 删除头像文件
// 默认头像和不属于本存储的地址不处理；失败只记日志
func (s *Service) RemoveAvatar(ctx context.Context, url string) {
	if IsDefaultAvatar(url) {
		return
	}
	key, ok := keyFromURL(s.prefix, url)
	if !ok {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to remove avatar", zap.String("url", url), zap.Error(err))
	}
}

// IsDefaultAvatar 是否为内置默认头像
func IsDefaultAvatar(url string) bool {
	return url == "" || url == model.DefaultBotAvatar || url == model.DefaultUserAvatar
}
