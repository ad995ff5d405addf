// Package fetch 抓取网页正文并转换成带剪藏头的 markdown 文档。
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const maxErrBody = 1024

// 页面骨架元素，不属于正文
var chromeSelectors = []string{
	"script", "style", "noscript", "nav", "header", "footer", "aside", "form", "iframe",
}

// Clipping 一次网页剪藏
type Clipping struct {
	Title    string
	Author   string
	Markdown string // 不含剪藏头的正文
	FinalURL string
	Fetched  time.Time
}

// Fetch 下载页面，提取正文并转换为 markdown。
// 响应按 Content-Type 与 meta 声明的字符集解码。
func Fetch(ctx context.Context, httpClient *http.Client, rawURL string) (*Clipping, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", "translator/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		errSnippet := strings.TrimSpace(string(body))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, errSnippet)
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	decoded, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	gqDoc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := normalizeTitle(gqDoc.Find("title").First().Text())
	if og, ok := gqDoc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		title = normalizeTitle(og)
	}
	author := ""
	if meta, ok := gqDoc.Find(`meta[name="author"]`).Attr("content"); ok {
		author = normalizeTitle(meta)
	}

	for _, sel := range chromeSelectors {
		gqDoc.Find(sel).Remove()
	}

	// 正文优先取 article，其次 main，最后整个 body
	content := gqDoc.Find("article").First()
	if content.Length() == 0 {
		content = gqDoc.Find("main").First()
	}
	if content.Length() == 0 {
		content = gqDoc.Find("body")
	}

	var contentHTML string
	if content.Length() > 0 {
		contentHTML, err = goquery.OuterHtml(content)
		if err != nil {
			return nil, fmt.Errorf("extract content: %w", err)
		}
	}

	markdown, err := htmltomarkdown.ConvertString(contentHTML)
	if err != nil {
		return nil, fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	markdown = strings.TrimSpace(markdown)

	return &Clipping{
		Title:    title,
		Author:   author,
		Markdown: markdown,
		FinalURL: finalURL,
		Fetched:  time.Now(),
	}, nil
}

// Document 拼装带剪藏头的完整 markdown 文档
func (c *Clipping) Document() string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "title: %q\n", c.Title)
	fmt.Fprintf(&b, "source: %q\n", c.FinalURL)
	if c.Author != "" {
		fmt.Fprintf(&b, "author: %q\n", c.Author)
	}
	fmt.Fprintf(&b, "created: %s\n", c.Fetched.Format("2006-01-02"))
	b.WriteString("tags:\n  - clippings\n")
	b.WriteString("---\n\n")

	if c.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", c.Title)
	}
	b.WriteString(c.Markdown)
	b.WriteString("\n")

	return b.String()
}

// Filename 把标题转成安全的文件名，标题为空时退回 clipping
func Filename(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return ' '
		}
		return r
	}, title)

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "clipping"
	}

	runes := []rune(cleaned)
	if len(runes) > 120 {
		cleaned = string(runes[:120])
	}
	return cleaned
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
