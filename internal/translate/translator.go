package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/user/cinesync/internal/utils"
)

// 批量翻译的条目分隔标记。带编号便于把响应重新对齐回输入顺序。
const itemMarker = "<<<%d>>>"

var reItemMarker = regexp.MustCompile(`<<<(\d+)>>>`)

// chatRequest OpenAI 兼容的 chat completions 请求
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse OpenAI 兼容的 chat completions 响应
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Translator 翻译网关。按配置的模型优先级依次尝试，
// 响应里出现中文字符才算成功，原样回显英文视为失败换下一个模型。
type Translator struct {
	apiBase      string
	apiKey       string
	models       []string
	systemPrompt string
	userPrefix   string
	client       *http.Client
	policy       utils.RetryPolicy
	memo         *gocache.Cache
}

// New 创建翻译网关
func New(apiBase, apiKey string, models []string, systemPrompt, userPrefix string) *Translator {
	return &Translator{
		apiBase:      strings.TrimRight(apiBase, "/"),
		apiKey:       apiKey,
		models:       models,
		systemPrompt: systemPrompt,
		userPrefix:   userPrefix,
		client: &http.Client{
			// LLM 生成内容较慢，超时放宽
			Timeout: 120 * time.Second,
		},
		policy: utils.RetryPolicy{MaxRetries: 2, BaseDelay: 2 * time.Second},
		memo:   gocache.New(24*time.Hour, 30*time.Minute),
	}
}

// SetHTTPClient 注入测试用的 HTTP 客户端
func (t *Translator) SetHTTPClient(c *http.Client) { t.client = c }

// SetSleep 注入测试用的等待函数
func (t *Translator) SetSleep(sleep func(time.Duration)) { t.policy.Sleep = sleep }

// TranslateOne 翻译单条文本。失败时返回原文，不向上抛错。
func (t *Translator) TranslateOne(ctx context.Context, text string) string {
	out := t.TranslateBatch(ctx, []string{text})
	return out[0]
}

// TranslateBatch 批量翻译，保序且与输入等长。空串原样穿过。
// 翻译失败退化为返回原文，管道继续运行，不算错误。
func (t *Translator) TranslateBatch(ctx context.Context, texts []string) []string {
	result := make([]string, len(texts))
	copy(result, texts)

	// 空串与命中缓存的条目不再出网
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if cached, found := t.memo.Get(memoKey(text)); found {
			result[i] = cached.(string)
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return result
	}

	batch := make([]string, len(pending))
	for j, i := range pending {
		batch[j] = texts[i]
	}

	translated, ok := t.translateAligned(ctx, batch)
	if !ok {
		log.Printf("[翻译] 所有模型均未产出可用译文，%d 条保留原文", len(batch))
		return result
	}

	for j, i := range pending {
		result[i] = translated[j]
		if translated[j] != texts[i] {
			t.memo.Set(memoKey(texts[i]), translated[j], gocache.DefaultExpiration)
		}
	}
	return result
}

// translateAligned 发起一次批量请求并把响应对齐回输入。
// 返回 ok=false 表示所有模型都失败，调用方应整体保留原文。
func (t *Translator) translateAligned(ctx context.Context, batch []string) ([]string, bool) {
	prompt := t.buildPrompt(batch)

	for _, mdl := range t.models {
		var raw string
		err := t.policy.Retry(ctx, func() error {
			var cerr error
			raw, cerr = t.chatComplete(ctx, mdl, prompt)
			return cerr
		})
		if err != nil {
			log.Printf("[翻译] 模型 %s 请求失败: %v", mdl, err)
			continue
		}
		// 成功判定：响应里至少要出现一个中文字符。
		// 只回显英文的响应视为该模型失败，换下一个。
		if !ContainsChinese(raw) {
			log.Printf("[翻译] 模型 %s 未产出中文内容，尝试下一个模型", mdl)
			continue
		}
		return alignResponse(raw, batch), true
	}
	return nil, false
}

// buildPrompt 把多条文本拼成一次请求，带编号标记
func (t *Translator) buildPrompt(batch []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s（共 %d 条，保持每条的编号标记）：\n\n", t.userPrefix, len(batch))
	for i, text := range batch {
		fmt.Fprintf(&sb, itemMarker+"\n%s\n", i+1, text)
	}
	return sb.String()
}

// chatComplete 调用一次 chat completions 接口
func (t *Translator) chatComplete(ctx context.Context, model, prompt string) (string, error) {
	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: t.systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.apiBase+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("请求翻译接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("翻译接口返回状态码: %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("解析翻译响应失败: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("翻译接口错误: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("翻译接口未返回内容")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// alignResponse 把模型响应重新对齐回输入条目。
// 逐级回退：编号段完全匹配 → 空行/单行切分 → 部分编号段 → 整体保留原文。
func alignResponse(raw string, batch []string) []string {
	// 单条输入：整个响应（去掉标记）就是译文
	if len(batch) == 1 {
		return []string{strings.TrimSpace(reItemMarker.ReplaceAllString(raw, ""))}
	}

	numbered := parseNumberedSegments(raw)

	// 编号段数量与输入完全一致，按位置使用
	if len(numbered) == len(batch) {
		out := make([]string, len(batch))
		for i := range batch {
			out[i] = numbered[i].text
		}
		return out
	}

	// 尝试空行切分，再尝试单行切分；切出的段数对得上且确有中文内容才采用
	for _, sep := range []string{"\n\n", "\n"} {
		parts := splitNonEmpty(reItemMarker.ReplaceAllString(raw, ""), sep)
		if len(parts) == len(batch) && anyChinese(parts) {
			return parts
		}
	}

	// 用解析成功的编号段按编号就位，没着落的位置回退为原文
	out := make([]string, len(batch))
	copy(out, batch)
	for _, seg := range numbered {
		if seg.index >= 1 && seg.index <= len(batch) && seg.text != "" {
			out[seg.index-1] = seg.text
		}
	}
	return out
}

type numberedSegment struct {
	index int
	text  string
}

// parseNumberedSegments 从响应中解析带编号标记的段落
func parseNumberedSegments(raw string) []numberedSegment {
	locs := reItemMarker.FindAllStringSubmatchIndex(raw, -1)
	segments := make([]numberedSegment, 0, len(locs))
	for i, loc := range locs {
		end := len(raw)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		index := 0
		fmt.Sscanf(raw[loc[2]:loc[3]], "%d", &index)
		segments = append(segments, numberedSegment{
			index: index,
			text:  strings.TrimSpace(raw[loc[1]:end]),
		})
	}
	return segments
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ContainsChinese 文本中是否含有中文字符。
// 这是对"翻译成功"的启发式判定，夹带未译专有名词的正确译文也能通过。
func ContainsChinese(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

func anyChinese(parts []string) bool {
	for _, p := range parts {
		if ContainsChinese(p) {
			return true
		}
	}
	return false
}

func memoKey(text string) string {
	return "trans:" + text
}
