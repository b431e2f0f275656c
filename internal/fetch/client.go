package fetch

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/cinesync/internal/utils"
)

// 已知的验证/挑战主机。被 301/302 跳转到这些主机说明触发了反爬验证。
var challengeHosts = []string{
	"sec.douban.com",
	"accounts.douban.com",
}

// 页面正文中的验证标记。返回 200 但正文包含这些内容同样视为被拦截。
var challengeMarkers = []string{
	"有异常请求",
	"检测到有异常请求",
	"请输入验证码",
	"正在验证",
	"captcha",
}

// Response 一次成功抓取的结果
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Headers 按来源站点定制的请求头
type Headers struct {
	AcceptLanguage string
	Referer        string
}

// Client 面向反爬站点的抓取客户端：UA 池轮换、会话 Cookie 注入、
// 反爬信号识别、线性退避的有界重试。
type Client struct {
	httpClient *http.Client
	userAgents []string
	cookie     string
	timeout    time.Duration
	policy     utils.RetryPolicy
}

// NewClient 创建抓取客户端。cookie 为空时验证跳转不再重试，快速失败。
func NewClient(timeout time.Duration, maxRetries int, cookie string) *Client {
	c := &Client{
		httpClient: &http.Client{
			// 不自动跟随跳转，302 到验证主机需要就地识别
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:109.0) Gecko/20100101 Firefox/121.0",
		},
		cookie:  cookie,
		timeout: timeout,
	}
	c.policy = utils.RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  2 * time.Second,
		Retryable: func(err error) bool {
			// 验证跳转只有带会话 Cookie 才有重试价值
			if errors.Is(err, ErrChallenge) {
				return c.cookie != ""
			}
			return IsRetryable(err)
		},
		DelayFor: func(err error, attempt int) time.Duration {
			// 限流要比一般失败等得更久
			if IsRateLimited(err) {
				return 2 * time.Second * time.Duration(attempt+2)
			}
			return 2 * time.Second * time.Duration(attempt+1)
		},
	}
	return c
}

// SetSleep 注入测试用的等待函数
func (c *Client) SetSleep(sleep func(time.Duration)) {
	c.policy.Sleep = sleep
}

// SetTransport 注入测试用的 http.RoundTripper
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// Fetch 抓取页面，带反爬识别与有界重试
func (c *Client) Fetch(ctx context.Context, rawURL string, hdr Headers) (*Response, error) {
	var resp *Response
	err := c.policy.Retry(ctx, func() error {
		var ferr error
		resp, ferr = c.fetchOnce(ctx, rawURL, hdr)
		return ferr
	})
	return resp, err
}

// fetchOnce 单次尝试：每次单独计超时，超时是可重试失败，与网络错误区分
func (c *Client) fetchOnce(ctx context.Context, rawURL string, hdr Headers) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	c.setHeaders(req, hdr)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// 继续读取正文
	case http.StatusNotFound, http.StatusGone:
		return nil, &Error{Kind: KindNotFound, Status: resp.StatusCode, URL: rawURL}
	case http.StatusForbidden:
		return nil, &Error{Kind: KindBlocked, Status: resp.StatusCode, URL: rawURL}
	case http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, Status: resp.StatusCode, URL: rawURL}
	case http.StatusMovedPermanently, http.StatusFound:
		if loc, lerr := resp.Location(); lerr == nil && isChallengeHost(loc) {
			return nil, &Error{Kind: KindChallenge, Status: resp.StatusCode, URL: rawURL}
		}
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, URL: rawURL}
	default:
		return nil, &Error{Kind: KindNetwork, Status: resp.StatusCode, URL: rawURL}
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	if marker := findChallengeMarker(body); marker != "" {
		return nil, &Error{Kind: KindChallenge, Status: resp.StatusCode, URL: rawURL,
			Err: errors.New("正文包含验证标记: " + marker)}
	}

	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// setHeaders 设置反爬请求头，模拟浏览器
func (c *Client) setHeaders(req *http.Request, hdr Headers) {
	req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	if hdr.AcceptLanguage != "" {
		req.Header.Set("Accept-Language", hdr.AcceptLanguage)
	} else {
		req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	}
	if hdr.Referer != "" {
		req.Header.Set("Referer", hdr.Referer)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
}

// decodeBody 按 Content-Encoding 解压正文
func decodeBody(resp *http.Response) ([]byte, error) {
	var reader io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		reader = flate.NewReader(resp.Body)
		defer reader.Close()
	default:
		reader = resp.Body
	}
	return io.ReadAll(reader)
}

func isChallengeHost(loc *url.URL) bool {
	host := strings.ToLower(loc.Host)
	for _, h := range challengeHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func findChallengeMarker(body []byte) string {
	// 只检查正文前 64KB，验证页都很小
	text := body
	if len(text) > 64<<10 {
		text = text[:64<<10]
	}
	lower := strings.ToLower(string(text))
	for _, m := range challengeMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return m
		}
	}
	return ""
}
