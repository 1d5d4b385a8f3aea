package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"regexp"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ashwinyue/persona-hub/internal/service/sanitize"
)

// 重定向次数上限
const maxLoreRedirects = 5

var errInternalAddr = errors.New("lore source resolves to an internal address")

var (
	blankLines  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	skippedTags = regexp.MustCompile(`(?is)<(script|style|nav|header|footer|aside)[^>]*>.*?</(script|style|nav|header|footer|aside)>`)
)

// LoreFetcher 并发抓取 bot 的设定资料
// 单个地址失败只跳过，不影响对话
type LoreFetcher struct {
	client   *http.Client
	timeout  time.Duration
	maxBytes int64
	logger   *zap.Logger
}

// NewLoreFetcher 创建抓取器，client 为 nil 时使用 NewLoreClient
func NewLoreFetcher(client *http.Client, timeout time.Duration, maxBytes int64, logger *zap.Logger) *LoreFetcher {
	if client == nil {
		client = NewLoreClient()
	}
	return &LoreFetcher{client: client, timeout: timeout, maxBytes: maxBytes, logger: logger}
}

// Fetch 按原顺序返回成功抓到的非空文本
func (f *LoreFetcher) Fetch(ctx context.Context, urls []string) []string {
	if len(urls) == 0 {
		return nil
	}

	results := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, u := range urls {
		g.Go(func() error {
			text, err := f.fetchOne(gctx, u)
			if err != nil {
				f.logger.Warn("lore fetch failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			results[i] = text
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(results))
	for _, r := range results {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

// NewLoreClient 只允许连接公网地址的客户端
// 在 DNS 解析之后按实际连接的 IP 检查，重定向同样经过这里
func NewLoreClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: rejectInternal,
	}
	return &http.Client{
		Transport: &http.Transport{
			// 不走环境代理，否则检查的是代理地址
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       30 * time.Second,
		},
		CheckRedirect: checkLoreRedirect,
	}
}

func rejectInternal(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("unexpected dial address %q: %w", address, err)
	}
	if !sanitize.IsPublicAddr(ap.Addr()) {
		return fmt.Errorf("%w: %s", errInternalAddr, ap.Addr())
	}
	return nil
}

func checkLoreRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxLoreRedirects {
		return fmt.Errorf("stopped after %d redirects", maxLoreRedirects)
	}
	if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
		return fmt.Errorf("redirect to unsupported scheme %q", req.URL.Scheme)
	}
	if sanitize.IsInternalHost(req.URL.Hostname()) {
		return fmt.Errorf("%w: %s", errInternalAddr, req.URL.Host)
	}
	return nil
}

func (f *LoreFetcher) fetchOne(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "PersonaHub-Lorebook/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", err
	}

	text := string(body)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" && mediaType != "text/plain" {
		text = htmlToText(text)
	}
	return cleanText(text), nil
}

func htmlToText(s string) string {
	s = skippedTags.ReplaceAllString(s, "")
	return sanitize.StripHTML(s)
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
