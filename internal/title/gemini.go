package title

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

// DefaultGeminiModel 与上游数据团队实际使用的模型保持一致。
const DefaultGeminiModel = "gemini-2.5-flash-lite"

// geminiPromptLines 是送给模型的每侧行数：标题信息集中在文件开头，
// 多送正文只会增加 token 消耗与误判面。
const geminiPromptLines = 5

// Pair 是成对提取出的标题（两侧指向同一部典籍）。
type Pair struct {
	Tibetan string `json:"tibetan_title"`
	English string `json:"english_title"`
}

// PairCache 缓存 Gemini 响应（按内容 md5 作键），避免重复计费调用。
// 实现见 infra/cache。
type PairCache interface {
	ReadGemini(key string) ([]byte, bool, error)
	WriteGemini(key string, b []byte) error
}

// Gemini 用 LLM 对照两侧文本的开头提取成对标题。
//
// 约束：
// - 只作为规则提取的增强，任何失败（网络/解析/空响应）都由调用方
//   静默回退到 Extract，绝不让 LLM 故障变成行级失败
// - 响应必须是 JSON（ResponseMIMEType 固定 application/json）
type Gemini struct {
	cli   *genai.Client
	model string
	cache PairCache
}

// NewGemini 构造 Gemini 提取器。API key 由 genai 客户端从环境读取
// （GEMINI_API_KEY），与 .env 加载保持一致。
func NewGemini(ctx context.Context, model string, cache PairCache) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{cli: cli, model: model, cache: cache}, nil
}

// ExtractPair 对照 bo/en 两侧的非空行序列提取成对标题。
// 任一侧为空、模型响应缺失或解析失败时返回错误；缓存命中不打网络。
func (g *Gemini) ExtractPair(ctx context.Context, boLines, enLines []string) (Pair, error) {
	bo := joinHead(boLines, geminiPromptLines)
	en := joinHead(enLines, geminiPromptLines)
	if bo == "" || en == "" {
		return Pair{}, errors.New("两侧内容不足，跳过 gemini 提取")
	}

	key := pairCacheKey(bo, en)
	if g.cache != nil {
		if b, ok, err := g.cache.ReadGemini(key); err == nil && ok {
			var p Pair
			if e := json.Unmarshal(b, &p); e == nil {
				return p, nil
			}
			// 坏缓存：忽略，走模型（成功后覆盖写回）。
		}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: pairPrompt(bo, en)}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Pair{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Pair{}, errors.New("gemini 响应为空")
	}

	p, err := parsePairResponse(resp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return Pair{}, err
	}

	if g.cache != nil {
		if b, e := json.Marshal(p); e == nil {
			_ = g.cache.WriteGemini(key, b)
		}
	}
	return p, nil
}

func pairPrompt(bo, en string) string {
	return `You are a Tibetan-English parallel text analyzer. You will receive the first lines of a Tibetan file and the first lines of its English translation. Both are translations of the same Buddhist text.

Your task:
- Identify and return the main title of the text, as it appears in both files.
- Ignore decorative lines (symbols only, publisher/copyright notices).
- Return ONLY a JSON object: {"tibetan_title": "<title>", "english_title": "<title>"}
- Leave a field as an empty string if no good match exists.

Tibetan lines:
` + bo + `

English lines:
` + en
}

// parsePairResponse 解析模型输出；容忍被 markdown 代码块包裹的 JSON。
func parsePairResponse(text string) (Pair, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var p Pair
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Pair{}, err
	}
	p.Tibetan = strings.TrimSpace(p.Tibetan)
	p.English = strings.TrimSpace(p.English)
	if p.Tibetan == "" || p.English == "" {
		return Pair{}, errors.New("gemini 未能给出成对标题")
	}
	return p, nil
}

func pairCacheKey(bo, en string) string {
	sum := md5.Sum([]byte(bo + "|||" + en))
	return hex.EncodeToString(sum[:])
}

func joinHead(lines []string, n int) string {
	if len(lines) < n {
		n = len(lines)
	}
	return strings.Join(lines[:n], "\n")
}
