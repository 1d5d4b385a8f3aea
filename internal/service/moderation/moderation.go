// Package moderation 调用外部图片分类服务判断是否为 NSFW
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/service/image"
	"github.com/ashwinyue/persona-hub/internal/service/types"
)

// NSFWClass 分类器中代表不安全内容的类别
const NSFWClass = "NSFW"

// Prediction 分类器输出的单个类别
type Prediction struct {
	ClassName   string  `json:"className"`
	Probability float64 `json:"probability"`
}

// Result 审核结果
type Result struct {
	Safe        bool         `json:"safe"`
	Reason      string       `json:"reason"`
	Predictions []Prediction `json:"predictions"`
}

// Service 图片审核服务
type Service struct {
	client    *http.Client
	endpoint  string
	threshold float64
	logger    *zap.Logger
}

// NewService 创建审核服务，client 为 nil 时按配置超时新建
func NewService(cfg config.ModerationConfig, client *http.Client, logger *zap.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Service{client: client, endpoint: cfg.Endpoint, threshold: cfg.Threshold, logger: logger}
}

// Check 把图片归一化为 224x224 后送给分类器
func (s *Service) Check(ctx context.Context, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, types.Validation("No image file provided")
	}
	if s.endpoint == "" {
		return nil, types.Upstream("Image classifier is not configured", nil)
	}

	normalized, err := image.ForClassifier(data)
	if err != nil {
		return nil, err
	}

	predictions, err := s.classify(ctx, normalized)
	if err != nil {
		s.logger.Error("nsfw classify failed", zap.Error(err))
		return nil, types.Upstream("Failed to check image", err)
	}

	sort.Slice(predictions, func(i, j int) bool {
		return predictions[i].Probability > predictions[j].Probability
	})
	for _, p := range predictions {
		if p.ClassName == NSFWClass && p.Probability > s.threshold {
			return &Result{Safe: false, Reason: "NSFW content detected", Predictions: predictions}, nil
		}
	}
	return &Result{Safe: true, Reason: "Image appears safe", Predictions: predictions}, nil
}

func (s *Service) classify(ctx context.Context, png []byte) ([]Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(png))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode)
	}

	var predictions []Prediction
	if err := json.NewDecoder(resp.Body).Decode(&predictions); err != nil {
		return nil, fmt.Errorf("decode classifier response: %w", err)
	}
	s.logger.Debug("nsfw classified", zap.Int("classes", len(predictions)), zap.Duration("latency", time.Since(start)))
	return predictions, nil
}
