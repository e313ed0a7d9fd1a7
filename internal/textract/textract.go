// Package textract turns submitted files into plain text.
package textract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrUnsupportedFormat is returned for files whose extension no converter handles
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrNoConverter is returned for audio and image files when no converter service is configured
var ErrNoConverter = errors.New("no converter configured")

// MediaType classifies a file by extension
type MediaType string

const (
	MediaText  MediaType = "text"
	MediaHTML  MediaType = "html"
	MediaAudio MediaType = "audio"
	MediaImage MediaType = "image"
)

var formats = map[string]MediaType{
	".txt": MediaText, ".md": MediaText, ".csv": MediaText, ".json": MediaText, ".xml": MediaText, ".rtf": MediaText,
	".html": MediaHTML, ".htm": MediaHTML,
	".wav": MediaAudio, ".mp3": MediaAudio, ".flac": MediaAudio, ".aiff": MediaAudio, ".m4a": MediaAudio, ".ogg": MediaAudio,
	".jpg": MediaImage, ".jpeg": MediaImage, ".png": MediaImage, ".bmp": MediaImage, ".tiff": MediaImage, ".gif": MediaImage, ".webp": MediaImage,
}

// Detect returns the media type of filename, or false if unsupported
func Detect(filename string) (MediaType, bool) {
	mt, ok := formats[strings.ToLower(filepath.Ext(filename))]
	return mt, ok
}

// SupportedFormats lists supported extensions per media type, sorted
func SupportedFormats() map[MediaType][]string {
	out := make(map[MediaType][]string)
	for ext, mt := range formats {
		out[mt] = append(out[mt], ext)
	}
	for _, exts := range out {
		sort.Strings(exts)
	}
	return out
}

// Extractor converts one file to text
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte) (string, error)
}

// FileExtractor decodes text formats locally and hands audio and images to a converter
type FileExtractor struct {
	converter *Converter // nil: audio and images are rejected
}

// NewFileExtractor creates an extractor; converter may be nil
func NewFileExtractor(converter *Converter) *FileExtractor {
	return &FileExtractor{converter: converter}
}

// Extract returns the text content of the file
func (e *FileExtractor) Extract(ctx context.Context, filename string, data []byte) (string, error) {
	mt, ok := Detect(filename)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	switch mt {
	case MediaText:
		text := decodeText(data)
		if strings.EqualFold(filepath.Ext(filename), ".rtf") {
			text = stripRTF(text)
		}
		return strings.TrimSpace(text), nil

	case MediaHTML:
		doc, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		return VisibleText(doc), nil

	default:
		if e.converter == nil {
			return "", fmt.Errorf("%s file %q: %w", mt, filename, ErrNoConverter)
		}
		return e.converter.Convert(ctx, mt, filename, data)
	}
}

// decodeText reads UTF-8, dropping a BOM and replacing invalid sequences
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "�")
}

var (
	rtfControl = regexp.MustCompile(`\\[a-zA-Z]+-?\d* ?|\\[^a-zA-Z]`)
	rtfGroup   = regexp.MustCompile(`[{}]`)
)

// stripRTF removes control words and groups, leaving the document text
func stripRTF(s string) string {
	s = rtfControl.ReplaceAllString(s, "")
	s = rtfGroup.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// VisibleText extracts text nodes from HTML, skipping scripts, styles and embeds
func VisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template", "svg":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if buf.Len() > 0 {
					buf.WriteByte(' ')
				}
				buf.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return buf.String()
}
