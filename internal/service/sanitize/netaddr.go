package sanitize

import (
	"net/netip"
	"strings"
)

// 运营商级 NAT 地址段，netip 没有现成判断
var sharedAddrSpace = netip.MustParsePrefix("100.64.0.0/10")

// IsPublicAddr 地址是否可以由服务端主动访问
// 回环、私网、链路本地、未指定和组播地址都不行
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	switch {
	case !addr.IsValid(),
		addr.IsLoopback(),
		addr.IsPrivate(),
		addr.IsLinkLocalUnicast(),
		addr.IsLinkLocalMulticast(),
		addr.IsInterfaceLocalMulticast(),
		addr.IsMulticast(),
		addr.IsUnspecified(),
		sharedAddrSpace.Contains(addr):
		return false
	}
	return true
}

// IsInternalHost 主机名是否明显指向本机或内网
// 只看字面量，域名解析后的地址由抓取端再检查
func IsInternalHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return !IsPublicAddr(addr)
	}
	return false
}
