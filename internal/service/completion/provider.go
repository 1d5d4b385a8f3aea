// Package completion 调用 OpenAI 兼容的对话模型：消息草拟与 bot 对话
package completion

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/persona-hub/internal/config"
	"github.com/ashwinyue/persona-hub/internal/model"
	"github.com/ashwinyue/persona-hub/internal/service/sanitize"
)

// Settings 一次调用使用的模型服务
type Settings struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

// ModelFactory 按设置创建对话模型，测试中替换为假模型
type ModelFactory func(ctx context.Context, s Settings) (einomodel.BaseChatModel, error)

// SettingsFor 用户设置了自己的服务时优先使用，否则用全局配置
func SettingsFor(cfg *config.AIConfig, user *model.User) (Settings, error) {
	if user != nil && user.APIKey != "" {
		s := Settings{Provider: user.AIProvider, APIKey: user.APIKey, Model: user.AIModel}
		if def, err := providerDefaults(cfg, user.AIProvider); err == nil {
			s.BaseURL = def.BaseURL
			if s.Model == "" {
				s.Model = def.Model
			}
		} else if isURL(user.AIProvider) {
			// 用户直接填写了兼容接口地址
			s.BaseURL = user.AIProvider
		}
		return s, nil
	}
	return providerDefaults(cfg, cfg.Provider)
}

func providerDefaults(cfg *config.AIConfig, provider string) (Settings, error) {
	var p config.ProviderConfig
	switch provider {
	case "openai", "":
		p = cfg.OpenAI
		provider = "openai"
	case "deepseek":
		p = cfg.DeepSeek
	default:
		return Settings{}, fmt.Errorf("unsupported ai provider: %s", provider)
	}
	return Settings{Provider: provider, APIKey: p.APIKey, BaseURL: p.BaseURL, Model: p.Model}, nil
}

// NewOpenAIFactory 基于 eino-ext 的 OpenAI 兼容模型
func NewOpenAIFactory(cfg *config.AIConfig) ModelFactory {
	return func(ctx context.Context, s Settings) (einomodel.BaseChatModel, error) {
		if s.APIKey == "" {
			return nil, fmt.Errorf("api_key is required for provider: %s", s.Provider)
		}
		modelName := s.Model
		if modelName == "" {
			modelName = "gpt-4o-mini"
		}
		maxTokens := cfg.MaxTokens
		temperature := cfg.Temperature

		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      s.APIKey,
			BaseURL:     s.BaseURL,
			Model:       modelName,
			Timeout:     cfg.Timeout,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// ValidProvider 用户可填写的服务：内置名称或公网 http(s) 接口地址
func ValidProvider(p string) bool {
	switch p {
	case "", "openai", "deepseek":
		return true
	}
	if !isURL(p) {
		return false
	}
	u, err := url.Parse(p)
	return err == nil && u.Host != "" && !sanitize.IsInternalHost(u.Hostname())
}
