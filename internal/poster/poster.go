package poster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store 海报本地化存储。对外只有一个操作：
// 把远程海报地址落成本地文件，返回站内可用的相对路径。
type Store struct {
	dir     string
	webBase string
	client  *http.Client
}

// NewStore 创建海报存储，dir 不存在时自动建立
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建海报目录失败: %w", err)
	}
	return &Store{
		dir:     dir,
		webBase: "/static/posters",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// SetHTTPClient 注入测试用的 HTTP 客户端
func (s *Store) SetHTTPClient(c *http.Client) { s.client = c }

// IsLocal 判断海报引用是否已本地化
func IsLocal(ref string) bool {
	return ref != "" && !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://")
}

// Materialize 下载远程海报到本地，返回站内路径。
// 下载失败只返回错误，调用方保留远程地址即可，不影响主流程。
func (s *Store) Materialize(ctx context.Context, rawURL, doubanID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	// 豆瓣图床有防盗链，Referer 必须指向站内
	req.Header.Set("Referer", "https://movie.douban.com/")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("下载海报失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("下载海报返回状态码: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("读取海报数据失败: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("海报内容为空")
	}

	name := doubanID + extFor(data)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("写入海报文件失败: %w", err)
	}
	return s.webBase + "/" + name, nil
}

// extFor 按内容嗅探扩展名，嗅探不出来按 jpg 处理
func extFor(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
