package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"
)

// HTTPRoundTripper 把出站请求改写到测试服务器
// hosts 为空时改写全部请求，否则只改写列出的主机
type HTTPRoundTripper struct {
	base  *url.URL
	next  http.RoundTripper
	hosts map[string]bool
}

// NewHTTPRoundTripper 创建请求重定向器
func NewHTTPRoundTripper(baseURL string, hosts ...string) *HTTPRoundTripper {
	u, _ := url.Parse(baseURL)
	set := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		set[h] = true
	}
	return &HTTPRoundTripper{base: u, next: http.DefaultTransport, hosts: set}
}

// RoundTrip 实现 http.RoundTripper 接口
func (t *HTTPRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.hosts) == 0 || t.hosts[req.URL.Host] {
		cloned := req.Clone(req.Context())
		cloned.URL.Scheme = t.base.Scheme
		cloned.URL.Host = t.base.Host
		cloned.Host = t.base.Host
		req = cloned
	}
	return t.next.RoundTrip(req)
}

// NewTestClient 创建测试用 HTTP 客户端
// 指定 hosts 时只重定向这些主机
func NewTestClient(ts *httptest.Server, hosts ...string) *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: NewHTTPRoundTripper(ts.URL, hosts...),
	}
}
