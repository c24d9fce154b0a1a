package post

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a source document split into its header fields and body text.
//
// Two header styles are understood. The native style is a leading block of
// "key: value" lines terminated by a blank line:
//
//	title: Hello
//	date: 2024-01-01
//	tags: go, blog
//
//	Body text...
//
// Documents may instead open with a YAML front matter block fenced by "---"
// lines. In that case tags may also be written as a YAML list.
type Document struct {
	// Fields holds header values keyed by lower-cased field name. Empty
	// values are dropped.
	Fields map[string]string

	// Body is the text following the header block.
	Body string
}

// Get returns the trimmed header value for key.
func (d *Document) Get(key string) string {
	if d == nil || d.Fields == nil {
		return ""
	}
	return d.Fields[strings.ToLower(key)]
}

var headerLineRe = regexp.MustCompile(`^\w+:`)

// ParseDocument splits raw document bytes into header fields and body. A
// document without a recognizable header yields empty Fields and the whole
// input as Body.
func ParseDocument(data []byte) (*Document, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	trimmed := strings.TrimLeft(text, " \t\n")
	if strings.HasPrefix(trimmed, "---\n") {
		return parseFrontmatter(trimmed)
	}
	return parseHeaderBlock(text), nil
}

func parseHeaderBlock(text string) *Document {
	doc := &Document{Fields: map[string]string{}}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		consumed int
		header   []string
		inHeader bool
		closed   bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		lineLen := len(line) + 1
		blank := strings.TrimSpace(line) == ""

		switch {
		case !inHeader && blank:
			// leading blank lines
		case !inHeader && headerLineRe.MatchString(line):
			inHeader = true
			header = append(header, line)
		case !inHeader:
			// first content line is not a header line
			doc.Body = text
			return doc
		case inHeader && blank:
			closed = true
		case inHeader && headerLineRe.MatchString(line):
			header = append(header, line)
		default:
			// header lines must be followed by a blank line
			doc.Body = text
			return doc
		}
		consumed += lineLen
		if closed {
			break
		}
	}

	// Swallow any further blank lines separating header from body.
	rest := ""
	if consumed < len(text) {
		rest = text[consumed:]
	}
	rest = strings.TrimLeft(rest, "\n")

	for _, line := range header {
		k, v, _ := strings.Cut(line, ":")
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		doc.Fields[k] = v
	}
	doc.Body = rest
	return doc
}

func parseFrontmatter(text string) (*Document, error) {
	doc := &Document{Fields: map[string]string{}}

	body := strings.TrimPrefix(text, "---\n")
	end := strings.Index(body, "\n---")
	if end < 0 {
		return nil, fmt.Errorf("%w: unterminated front matter", ErrParse)
	}
	raw := body[:end]
	rest := body[end+len("\n---"):]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = ""
	}

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(raw), &fm); err != nil {
		return nil, fmt.Errorf("%w: front matter: %v", ErrParse, err)
	}
	for k, v := range fm {
		s := frontmatterString(v)
		if s == "" {
			continue
		}
		doc.Fields[strings.ToLower(k)] = s
	}
	doc.Body = strings.TrimLeft(rest, "\n")
	return doc, nil
}

// frontmatterString flattens a decoded YAML value into the header string
// form. Lists become comma separated values.
func frontmatterString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []any:
		var b bytes.Buffer
		for _, item := range x {
			s := frontmatterString(item)
			if s == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString(", ")
			}
			b.WriteString(s)
		}
		return b.String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
