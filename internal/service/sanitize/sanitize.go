// Package sanitize 用户输入清洗与长度校验
package sanitize

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashwinyue/persona-hub/internal/service/types"
	"github.com/microcosm-cc/bluemonday"
)

// URLMax 用户填写的外部地址长度上限
const URLMax = 2000

var (
	strict          = bluemonday.StrictPolicy()
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// 用户名长度
const (
	UsernameMin = 3
	UsernameMax = 30
)

// StripHTML 去掉所有 HTML 标签，保留文本
func StripHTML(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}

// Text 去标签后校验长度（按字符数）
func Text(field, s string, max int) (string, error) {
	clean := StripHTML(s)
	if utf8.RuneCountInString(clean) > max {
		return "", types.Validation("%s too long. Maximum length: %d", field, max)
	}
	return clean, nil
}

// RequiredText 同 Text，且去空白后不能为空
func RequiredText(field, s string, max int) (string, error) {
	clean, err := Text(field, s, max)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(clean) == "" {
		return "", types.Validation("%s is required", field)
	}
	return clean, nil
}

// Username 校验用户名：3-30 个字母、数字、下划线或连字符
func Username(s string) (string, error) {
	clean := strings.TrimSpace(StripHTML(s))
	if !IsUsername(clean) {
		if len(clean) < UsernameMin || len(clean) > UsernameMax {
			return "", types.Validation("Username must be between %d and %d characters", UsernameMin, UsernameMax)
		}
		return "", types.Validation("Username can only contain alphanumeric characters, hyphens, and underscores")
	}
	return clean, nil
}

// IsUsername 是否为合法用户名
func IsUsername(s string) bool {
	return len(s) >= UsernameMin && len(s) <= UsernameMax && usernamePattern.MatchString(s)
}

// Tags 清洗标签：去空白、去空串、去重，单个标签不超过 maxLen
func Tags(tags []string, maxLen, maxCount int) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		clean, err := Text("Tag", strings.TrimSpace(t), maxLen)
		if err != nil {
			return nil, err
		}
		clean = strings.TrimSpace(clean)
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	if len(out) > maxCount {
		return nil, types.Validation("Too many tags. Maximum: %d", maxCount)
	}
	return out, nil
}

// URLs 过滤出合法的 http(s) 绝对地址，单个不超过 maxLen
func URLs(raw []string, maxLen, maxCount int) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" || len(r) > maxLen {
			continue
		}
		u, err := url.Parse(r)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		if IsInternalHost(u.Hostname()) {
			continue
		}
		out = append(out, r)
	}
	if len(out) > maxCount {
		return nil, types.Validation("Too many lore sources. Maximum: %d", maxCount)
	}
	return out, nil
}
