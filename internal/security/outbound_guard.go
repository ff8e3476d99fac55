package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard は外部マスタ（現場・取引先）の取得先へ安全に接続するための機能を定義する。
// 同期先URLは環境変数で設定されるが、誤設定で内部ネットワークへ到達しないように検証する。
type OutboundGuard interface {
	// NewSafeClient は内部アドレスへの接続を拒否するHTTPクライアントを生成する。
	// 名前解決後のIPアドレスもダイアル時に検証される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL は名前解決を行わずにURLの形式と宛先を検証する。
	ValidateURL(rawURL string) error
}

// ErrBlockedDestination は同期先が接続禁止の宛先である場合のエラー。
var ErrBlockedDestination = errors.New("接続が禁止された宛先です")

var allowedSchemes = []string{"http", "https"}

// blockedNetworks はValidateURLで拒否するアドレス範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // メタデータIP 169.254.169.254 を含む
	"0.0.0.0/8",
	"100.64.0.0/10",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

var blockedHostnames = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// outboundGuard はOutboundGuardの実装。
type outboundGuard struct {
	allowedPorts []int
}

// NewOutboundGuard はOutboundGuardの新しいインスタンスを生成する。
// 接続を許可するポートは80と443のみ。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{allowedPorts: []int{80, 443}}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// プライベート、ループバック、リンクローカルの各アドレスへの接続はダイアル時に拒否される。
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は同期先URLを静的に検証する。
// DNS再バインディングはNewSafeClient側のダイアル時検証で防ぐ。
func (g *outboundGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("URLが空です")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URLの解析に失敗しました: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("許可されていないスキームです: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("ホストがありません: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: %s", ErrBlockedDestination, ip)
		}
		return nil
	}

	if blockedHostnames[strings.ToLower(host)] {
		return fmt.Errorf("%w: %s", ErrBlockedDestination, host)
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
