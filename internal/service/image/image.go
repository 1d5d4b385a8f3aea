// Package image 头像解码、缩放与格式转换
package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// ClassifierSize 送审图片的边长
const ClassifierSize = 224

// 解码前的尺寸上限，压缩后很小的图片也可能声明巨大的画布
const (
	MaxSide   = 8192
	MaxPixels = 4096 * 4096
)

var allowedFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
}

// Processor 头像处理
type Processor struct {
	cfg config.ImageConfig
}

// NewProcessor 创建头像处理器
func NewProcessor(cfg config.ImageConfig) *Processor {
	return &Processor{cfg: cfg}
}

// BotAvatar 解码 data URI，等比缩放到 BotSize 以内（不放大），输出 PNG
func (p *Processor) BotAvatar(dataURI string) ([]byte, error) {
	img, err := p.decode(dataURI, p.cfg.BotMaxBytes)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() > p.cfg.BotSize || b.Dy() > p.cfg.BotSize {
		img = imaging.Fit(img, p.cfg.BotSize, p.cfg.BotSize, imaging.Lanczos)
	}
	return encodePNG(img)
}

// UserAvatar 解码 data URI，居中裁剪为 UserSize 正方形，输出 PNG
func (p *Processor) UserAvatar(dataURI string) ([]byte, error) {
	img, err := p.decode(dataURI, p.cfg.UserMaxBytes)
	if err != nil {
		return nil, err
	}
	img = imaging.Fill(img, p.cfg.UserSize, p.cfg.UserSize, imaging.Center, imaging.Lanczos)
	return encodePNG(img)
}

// ForClassifier 把上传的图片拉伸到 224x224 的 PNG
func ForClassifier(data []byte) ([]byte, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, err
	}
	img = imaging.Resize(img, ClassifierSize, ClassifierSize, imaging.Linear)
	return encodePNG(img)
}

// DecodeDataURI 解析 data:image/...;base64, 前缀的图片；也接受裸 base64
func DecodeDataURI(s string, maxBytes int) ([]byte, error) {
	payload := strings.TrimSpace(s)
	if payload == "" {
		return nil, types.Validation("Invalid image data")
	}
	if strings.HasPrefix(payload, "data:") {
		meta, data, ok := strings.Cut(payload, ",")
		if !ok || !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
			return nil, types.Validation("Invalid image data")
		}
		payload = data
	}

	// 解码前按 base64 长度估算，避免为超大输入分配内存
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+3 {
		return nil, tooLarge(maxBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, types.Validation("Invalid image data")
	}
	if len(raw) > maxBytes {
		return nil, tooLarge(maxBytes)
	}
	return raw, nil
}

func (p *Processor) decode(dataURI string, maxBytes int) (stdimage.Image, error) {
	raw, err := DecodeDataURI(dataURI, maxBytes)
	if err != nil {
		return nil, err
	}
	return decodeImage(raw)
}

func decodeImage(raw []byte) (stdimage.Image, error) {
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, types.Validation("Invalid image file")
	}
	if !allowedFormats[format] {
		return nil, types.Validation("Invalid image format")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, types.Validation("Invalid image file")
	}
	if cfg.Width > MaxSide || cfg.Height > MaxSide || cfg.Width*cfg.Height > MaxPixels {
		return nil, types.Validation("Image dimensions too large")
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, types.Validation("Invalid image file")
	}
	return img, nil
}

func encodePNG(img stdimage.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func tooLarge(maxBytes int) error {
	return types.Validation("Image too large. Maximum size: %dMB", maxBytes/(1024*1024))
}
