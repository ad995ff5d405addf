package formatter

import (
	"bytes"
	"errors"
	"io"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding 所有候选编码都解不出合理文本
var ErrUnknownEncoding = errors.New("unable to detect text encoding")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// 候选编码按本工具常见输入排列，EUC-KR 靠前
var encodingCandidates = []encoding.Encoding{
	korean.EUCKR,
	simplifiedchinese.GB18030,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
	japanese.ShiftJIS,
	japanese.EUCJP,
	charmap.Windows1252,
	charmap.ISO8859_1,
	xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM),
	xunicode.UTF16(xunicode.BigEndian, xunicode.IgnoreBOM),
}

// DecodeText 把未知编码的文件内容转为 UTF-8。
// 合法 UTF-8 直接通过（剥掉 BOM），带 BOM 的 UTF-16 按 BOM 解码，
// 其余逐个尝试候选编码，取第一个产出可读文本的结果。
func DecodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	if s, ok := decodeUTF16BOM(data); ok {
		return s, nil
	}
	for _, enc := range encodingCandidates {
		decoded, err := decodeWith(data, enc)
		if err != nil {
			continue
		}
		if isReasonableText(decoded) {
			return decoded, nil
		}
	}
	return "", ErrUnknownEncoding
}

func decodeUTF16BOM(data []byte) (string, bool) {
	if len(data) < 2 {
		return "", false
	}
	var enc encoding.Encoding
	switch {
	case data[0] == 0xFF && data[1] == 0xFE:
		enc = xunicode.UTF16(xunicode.LittleEndian, xunicode.UseBOM)
	case data[0] == 0xFE && data[1] == 0xFF:
		enc = xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM)
	default:
		return "", false
	}
	s, err := decodeWith(data, enc)
	if err != nil {
		return "", false
	}
	return s, true
}

func decodeWith(data []byte, enc encoding.Encoding) (string, error) {
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", ErrUnknownEncoding
	}
	return string(out), nil
}

// isReasonableText 可打印字符占比超过 0.9 才认为解码正确
func isReasonableText(s string) bool {
	if s == "" {
		return false
	}
	printable, total := 0, 0
	for _, r := range s {
		total++
		if r == utf8.RuneError {
			continue
		}
		if r == '\n' || r == '\r' || r == '\t' || unicode.IsPrint(r) {
			printable++
		}
	}
	return float64(printable)/float64(total) > 0.9
}
