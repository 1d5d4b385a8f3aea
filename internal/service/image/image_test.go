package image

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	stdimage "image"
	"image/color"
	"image/gif"
	"image/png"
	"strings"
	"testing"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

func testConfig() config.ImageConfig {
	return config.ImageConfig{
		BotMaxBytes:  5 * 1024 * 1024,
		UserMaxBytes: 2 * 1024 * 1024,
		BotSize:      512,
		UserSize:     200,
	}
}

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func size(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "png" {
		t.Errorf("output format = %s, want png", format)
	}
	return cfg.Width, cfg.Height
}

func TestBotAvatar_FitsInside(t *testing.T) {
	p := NewProcessor(testConfig())

	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape shrinks", 1024, 600, 512, 300},
		{"portrait shrinks", 300, 1200, 128, 512},
		{"small not enlarged", 100, 50, 100, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.BotAvatar(pngDataURI(t, tt.w, tt.h))
			if err != nil {
				t.Fatal(err)
			}
			w, h := size(t, out)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestUserAvatar_Fills(t *testing.T) {
	p := NewProcessor(testConfig())
	out, err := p.UserAvatar(pngDataURI(t, 300, 100))
	if err != nil {
		t.Fatal(err)
	}
	if w, h := size(t, out); w != 200 || h != 200 {
		t.Errorf("size = %dx%d, want 200x200", w, h)
	}
}

func TestAvatar_AcceptsGIF(t *testing.T) {
	img := stdimage.NewPaletted(stdimage.Rect(0, 0, 20, 20), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	uri := "data:image/gif;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	if _, err := NewProcessor(testConfig()).BotAvatar(uri); err != nil {
		t.Errorf("gif should be accepted: %v", err)
	}
}

func TestAvatar_Rejects(t *testing.T) {
	cfg := testConfig()
	cfg.UserMaxBytes = 1024
	p := NewProcessor(cfg)

	tests := []struct {
		name string
		uri  string
	}{
		{"empty", ""},
		{"not base64", "data:image/png;base64,!!!"},
		{"not an image", "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello world"))},
		{"wrong mime", "data:text/plain;base64,aGVsbG8="},
		{"too large", "data:image/png;base64," + base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0}, 2048))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.UserAvatar(tt.uri)
			if !errors.Is(err, types.ErrValidation) {
				t.Fatalf("UserAvatar() error = %v, want validation", err)
			}
		})
	}
}

func TestDecodeDataURI_RawBase64(t *testing.T) {
	raw, err := DecodeDataURI(base64.StdEncoding.EncodeToString([]byte("abc")), 10)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "abc" {
		t.Errorf("DecodeDataURI() = %q", raw)
	}

	_, err = DecodeDataURI(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("a", 3*1024*1024))), 2*1024*1024)
	if err == nil || !strings.Contains(types.Message(err), "2MB") {
		t.Errorf("error = %v, want size message with 2MB", err)
	}
}

func TestForClassifier(t *testing.T) {
	uri := pngDataURI(t, 640, 480)
	raw, err := DecodeDataURI(uri, 5*1024*1024)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ForClassifier(raw)
	if err != nil {
		t.Fatal(err)
	}
	if w, h := size(t, out); w != ClassifierSize || h != ClassifierSize {
		t.Errorf("size = %dx%d, want 224x224", w, h)
	}
}

// hugePNG 返回一个 1x1 的 PNG，但 IHDR 声明为 w x h
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, stdimage.NewGray(stdimage.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	// 8 字节签名 + 4 字节长度 + "IHDR"，宽高从第 16 字节开始
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecode_RejectsHugeDimensions(t *testing.T) {
	p := NewProcessor(testConfig())

	tests := []struct {
		name string
		w, h uint32
	}{
		{"wide", MaxSide + 1, 1},
		{"tall", 1, MaxSide + 1},
		{"too many pixels", MaxSide, MaxSide},
		{"huge square", 20000, 20000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := hugePNG(t, tt.w, tt.h)
			cfg, _, err := stdimage.DecodeConfig(bytes.NewReader(raw))
			if err != nil || uint32(cfg.Width) != tt.w || uint32(cfg.Height) != tt.h {
				t.Fatalf("forged header not readable: %v %+v", err, cfg)
			}

			_, err = ForClassifier(raw)
			if !errors.Is(err, types.ErrValidation) || types.Message(err) != "Image dimensions too large" {
				t.Errorf("ForClassifier() error = %v", err)
			}
			uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
			if _, err := p.BotAvatar(uri); !errors.Is(err, types.ErrValidation) {
				t.Errorf("BotAvatar() error = %v", err)
			}
			if _, err := p.UserAvatar(uri); !errors.Is(err, types.ErrValidation) {
				t.Errorf("UserAvatar() error = %v", err)
			}
		})
	}
}

func TestDecode_AcceptsLimitSizedImage(t *testing.T) {
	raw := hugePNG(t, MaxSide, 1)
	// 头部合法，像素数据与声明不符，解码失败但不是尺寸错误
	_, err := ForClassifier(raw)
	if err != nil && types.Message(err) == "Image dimensions too large" {
		t.Errorf("a %dx1 image is within limits, got %v", MaxSide, err)
	}
}
