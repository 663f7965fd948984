package persona

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	applog "karanbot/internal/platform/log"
)

// 人设资料文档解析：把 md/txt/pdf/docx 统一抽成纯文本，
// 再按段落切成可嵌入的知识片段。

// docParser 单一格式的文档解析器
type docParser interface {
	Parse(reader io.Reader, filename string) (string, error)
	SupportedTypes() []string
}

var parsers = []docParser{
	&markdownParser{},
	&plainTextParser{},
	&pdfParser{},
	&docxParser{},
}

// parserFor 按扩展名选择解析器；不支持的格式返回 nil
func parserFor(filename string) docParser {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, p := range parsers {
		for _, t := range p.SupportedTypes() {
			if t == ext {
				return p
			}
		}
	}
	return nil
}

// ── Markdown ─────────────────────────────────────────────────

type markdownParser struct{}

var (
	reMarkdownHeader = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reMarkdownBold   = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reMarkdownItalic = regexp.MustCompile(`\*(.+?)\*`)
	reMarkdownCode   = regexp.MustCompile("```[\\s\\S]*?```")
	reMarkdownInline = regexp.MustCompile("`([^`]+)`")
	reMarkdownLink   = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	reMarkdownImage  = regexp.MustCompile(`!\[([^\]]*)\]\([^)]+\)`)
	reMarkdownHTML   = regexp.MustCompile(`<[^>]+>`)
)

func (p *markdownParser) SupportedTypes() []string {
	return []string{".md", ".markdown"}
}

func (p *markdownParser) Parse(reader io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read markdown: %w", err)
	}

	text := string(data)

	// 去除代码块标记但保留内容
	text = reMarkdownCode.ReplaceAllStringFunc(text, func(s string) string {
		s = strings.TrimPrefix(s, "```")
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(s, "```")
		return strings.TrimSpace(s)
	})

	text = reMarkdownImage.ReplaceAllString(text, "$1")
	text = reMarkdownLink.ReplaceAllString(text, "$1")
	text = reMarkdownBold.ReplaceAllString(text, "$1")
	text = reMarkdownItalic.ReplaceAllString(text, "$1")
	text = reMarkdownInline.ReplaceAllString(text, "$1")
	text = reMarkdownHeader.ReplaceAllString(text, "")
	text = reMarkdownHTML.ReplaceAllString(text, "")

	return strings.TrimSpace(cleanExtraNewlines(text)), nil
}

// ── 纯文本 ────────────────────────────────────────────────────

type plainTextParser struct{}

func (p *plainTextParser) SupportedTypes() []string {
	return []string{".txt", ".text"}
}

func (p *plainTextParser) Parse(reader io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// ── PDF ──────────────────────────────────────────────────────

type pdfParser struct{}

func (p *pdfParser) SupportedTypes() []string {
	return []string{".pdf"}
}

func (p *pdfParser) Parse(reader io.Reader, filename string) (string, error) {
	// pdf 库需要 io.ReaderAt + size，先读到内存
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read pdf data: %w", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			applog.Warn("[Persona/PDF] Failed to extract page text", "file", filename, "page", i, "error", err)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n\n")
		}
	}

	return strings.TrimSpace(cleanExtraNewlines(sb.String())), nil
}

// ── DOCX ─────────────────────────────────────────────────────

type docxParser struct{}

func (p *docxParser) SupportedTypes() []string {
	return []string{".docx"}
}

func (p *docxParser) Parse(reader io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read docx data: %w", err)
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	content := r.Editable().GetContent()

	var sb strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(cleanExtraNewlines(sb.String())), nil
}

// ── 切片 ─────────────────────────────────────────────────────

var reMultiNewlines = regexp.MustCompile(`\n{3,}`)

func cleanExtraNewlines(text string) string {
	return reMultiNewlines.ReplaceAllString(text, "\n\n")
}

// chunkText 按空行切段，过长段落继续按句长裁切
func chunkText(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 800
	}

	var chunks []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChars {
			chunks = append(chunks, para)
			continue
		}

		// 超长段落按行再聚合
		var cur strings.Builder
		for _, line := range strings.Split(para, "\n") {
			if cur.Len()+len(line)+1 > maxChars && cur.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(cur.String()))
				cur.Reset()
			}
			cur.WriteString(line)
			cur.WriteString("\n")
		}
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
	}
	return chunks
}
