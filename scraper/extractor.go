package scraper

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/markusmobius/go-trafilatura"
	"go.uber.org/zap"
)

type ContentKind string

const (
	KindHTML        ContentKind = "html"
	KindPDF         ContentKind = "pdf"
	KindText        ContentKind = "text"
	KindUnsupported ContentKind = "unsupported"
)

// Extraction modes for markup pages.
const (
	ModeStrip       = "strip"
	ModeReadability = "readability"
	ModeTrafilatura = "trafilatura"
)

// nonContentSelector lists elements whose text never belongs to the article.
const nonContentSelector = "script, style, noscript, nav, header, footer, iframe"

var whitespaceRe = regexp.MustCompile(`\s+`)

type Extractor struct {
	mode   string
	logger *zap.Logger
}

func NewExtractor(mode string, logger *zap.Logger) *Extractor {
	if mode == "" {
		mode = ModeStrip
	}
	return &Extractor{mode: mode, logger: logger}
}

// Classify decides how a page body should be parsed from its content type,
// falling back to the URL extension when the header is missing or generic.
func Classify(contentType, rawURL string) ContentKind {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "application/pdf":
		return KindPDF
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		return KindHTML
	case mediaType == "text/plain":
		return KindText
	}

	if mediaType == "" || mediaType == "application/octet-stream" {
		if u, err := url.Parse(rawURL); err == nil {
			switch strings.ToLower(path.Ext(u.Path)) {
			case ".pdf":
				return KindPDF
			case ".txt":
				return KindText
			}
		}
		if mediaType == "" {
			return KindHTML
		}
	}
	return KindUnsupported
}

// Extract returns the visible text of a page with whitespace collapsed. An
// empty string means there was nothing worth indexing.
func (e *Extractor) Extract(page *Page) (string, ContentKind, error) {
	kind := Classify(page.ContentType, page.URL)

	var (
		text string
		err  error
	)
	switch kind {
	case KindPDF:
		text, err = ExtractPDF(page.Body)
	case KindHTML:
		text, err = e.extractHTML(page)
	case KindText:
		text = string(page.Body)
	default:
		e.logger.Debug("unsupported content type",
			zap.String("url", page.URL),
			zap.String("content_type", page.ContentType))
		return "", kind, nil
	}
	if err != nil {
		return "", kind, err
	}
	return CollapseWhitespace(text), kind, nil
}

func (e *Extractor) extractHTML(page *Page) (string, error) {
	switch e.mode {
	case ModeReadability:
		text, err := extractReadability(page.Body, page.URL)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		e.logger.Debug("readability found no article, stripping markup", zap.String("url", page.URL), zap.Error(err))
	case ModeTrafilatura:
		text, err := extractTrafilatura(page.Body, page.URL)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		e.logger.Debug("trafilatura found no content, stripping markup", zap.String("url", page.URL), zap.Error(err))
	}
	return StripMarkup(page.Body)
}

// StripMarkup drops non-content elements and returns the remaining body text.
func StripMarkup(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find(nonContentSelector).Remove()

	if b := doc.Find("body"); b.Length() > 0 {
		return b.Text(), nil
	}
	return doc.Text(), nil
}

func extractReadability(body []byte, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

func extractTrafilatura(body []byte, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	result, err := trafilatura.Extract(bytes.NewReader(body), trafilatura.Options{OriginalURL: parsedURL})
	if err != nil {
		return "", err
	}
	return result.ContentText, nil
}

// ExtractPDF returns the plain text of every page of a PDF document.
func ExtractPDF(content []byte) (text string, err error) {
	// the parser panics on some malformed documents
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(pageText)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
