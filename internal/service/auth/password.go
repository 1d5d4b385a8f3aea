package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"unicode/utf8"

	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/types"
	"golang.org/x/crypto/scrypt"
)

// scrypt 参数，与已有数据保持一致
const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltBytes    = 32
	keyBytes     = 64
)

// 密码长度
const (
	PasswordMin = 8
	PasswordMax = 128
)

// ValidatePassword 哈希之前检查密码长度
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < PasswordMin {
		return types.Validation("Password must be at least %d characters long", PasswordMin)
	}
	if n > PasswordMax {
		return types.Validation("Password too long")
	}
	return nil
}

// HashPassword 生成随机盐并计算 scrypt 摘要
func HashPassword(password string) (model.Credential, error) {
	if err := ValidatePassword(password); err != nil {
		return model.Credential{}, err
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return model.Credential{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	saltHex := hex.EncodeToString(salt)

	digest, err := derive(password, saltHex)
	if err != nil {
		return model.Credential{}, err
	}
	return model.Credential{Salt: saltHex, Hash: hex.EncodeToString(digest)}, nil
}

// VerifyPassword 重新计算摘要并常量时间比较
func VerifyPassword(password string, cred model.Credential) bool {
	if cred.Salt == "" || cred.Hash == "" {
		return false
	}
	want, err := hex.DecodeString(cred.Hash)
	if err != nil {
		return false
	}
	got, err := derive(password, cred.Salt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}

// derive 盐以十六进制字符串原样作为 scrypt 的 salt 输入
func derive(password, saltHex string) ([]byte, error) {
	digest, err := scrypt.Key([]byte(password), []byte(saltHex), scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return digest, nil
}

// NewSessionKey 生成长期会话密钥
func NewSessionKey() (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
