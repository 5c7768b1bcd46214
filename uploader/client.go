package uploader

import (
	"bytes"
	"net/netip"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const headerForwardedFor = "X-Forwarded-For"

type proxies []netip.Prefix

// parseProxies accepts addresses and CIDR prefixes, invalid entries are
// logged and skipped.
func parseProxies(l *zap.Logger, list []string) proxies {
	result := make(proxies, 0, len(list))

	for _, item := range list {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if prefix, err := netip.ParsePrefix(item); err == nil {
			result = append(result, prefix.Masked())
			continue
		}

		addr, err := netip.ParseAddr(item)
		if err != nil {
			l.Warn("skip invalid trusted proxy", zap.String("proxy", item), zap.Error(err))
			continue
		}

		addr = addr.Unmap()
		result = append(result, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return result
}

func (p proxies) trusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range p {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// clientAddr returns the address requests are keyed and logged by. When the
// peer is a trusted proxy, X-Forwarded-For is walked from the right and the
// first untrusted hop wins. If every hop is trusted the leftmost one is used.
func (p proxies) clientAddr(c *fasthttp.RequestCtx) string {
	peer, ok := netip.AddrFromSlice(c.RemoteIP())
	if !ok {
		return c.RemoteIP().String()
	}

	peer = peer.Unmap()
	if !p.trusted(peer) {
		return peer.String()
	}

	header := c.Request.Header.Peek(headerForwardedFor)
	if len(header) == 0 {
		return peer.String()
	}

	hops := bytes.Split(header, []byte(","))

	client := peer
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(string(bytes.TrimSpace(hops[i])))
		if err != nil {
			// unparsable hop ends the chain, the last good address stands
			break
		}

		client = hop.Unmap()
		if !p.trusted(client) {
			break
		}
	}

	return client.String()
}
