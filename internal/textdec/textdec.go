// Package textdec 把远端拿到的原始字节解码为文本。
//
// 原则：解码是全函数（total function）——按优先级逐个尝试编码，
// latin-1 是保证成功的终点兜底（任意字节序列都是合法 latin-1），
// 所以 Decode 永远不返回错误，最坏情况只是得到乱码文本。
// 质量损失通过 Decoded.Encoding 暴露给上层（非 utf-8 时记入 notes）。
package textdec

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

const (
	EncUTF8   = "utf-8"
	EncUTF16  = "utf-16"
	EncLatin1 = "latin-1"
)

// DefaultEncodings 返回默认尝试顺序（与上游数据的实际分布一致：
// 绝大多数文件是 utf-8，少量 Windows 导出是带 BOM 的 utf-16）。
func DefaultEncodings() []string {
	return []string{EncUTF8, EncUTF16, EncLatin1}
}

// Decoded 是一次解码的结果。
type Decoded struct {
	Text     string
	Encoding string
}

// Decode 按 encodings 的顺序尝试解码 raw，返回第一个成功的结果。
//
// 约束：
// - 纯函数；不保留任何跨调用状态
// - 未知编码名直接跳过；列表里没有任何编码成功时，无条件落到 latin-1
//   （保证调用方永远拿到文本，符合“核心不抛错”的总契约）
func Decode(raw []byte, encodings []string) Decoded {
	for _, name := range encodings {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case EncUTF8:
			if utf8.Valid(raw) {
				return Decoded{Text: string(raw), Encoding: EncUTF8}
			}
		case EncUTF16:
			if text, ok := decodeUTF16(raw); ok {
				return Decoded{Text: text, Encoding: EncUTF16}
			}
		case EncLatin1:
			return Decoded{Text: decodeLatin1(raw), Encoding: EncLatin1}
		}
	}
	return Decoded{Text: decodeLatin1(raw), Encoding: EncLatin1}
}

// decodeUTF16 解码 utf-16：有 BOM 按 BOM，无 BOM 按 little-endian。
//
// x/text 的 UTF-16 解码不报错而是用 U+FFFD 替换非法序列；
// 这里把“产生了替换符”视为尝试失败，让明显不是 utf-16 的内容
// 继续落到 latin-1，而不是拿到一串替换符。
func decodeUTF16(raw []byte) (string, bool) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return "", false
	}
	dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	b, err := dec.Bytes(raw)
	if err != nil {
		return "", false
	}
	text := string(b)
	if strings.ContainsRune(text, utf8.RuneError) {
		return "", false
	}
	return text, true
}

func decodeLatin1(raw []byte) string {
	// ISO-8859-1 对 256 个字节值都有定义，解码不可能失败。
	b, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		// ISO-8859-1 的前 256 个码位与 Unicode 一致，逐字节转换结果相同。
		r := make([]rune, len(raw))
		for i, c := range raw {
			r[i] = rune(c)
		}
		return string(r)
	}
	return string(b)
}
