package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Normalizer готовит текст поста к публикации на другой платформе:
// HTML → plain text, раскрытие сокращённых ссылок, вырезание URL вложений.
// Состояния не имеет; сеть нужна только для resolve ссылок.
type Normalizer struct {
	http *http.Client
	log  *slog.Logger
}

func NewNormalizer(httpClient *http.Client, log *slog.Logger) *Normalizer {
	return &Normalizer{http: httpClient, log: log}
}

var trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)

// Plain выполняет полный конвейер нормализации. strip — подстроки
// (обычно URL вложений), которые надо убрать из итогового текста.
func (n *Normalizer) Plain(ctx context.Context, body string, strip []string) string {
	text := htmlToText(body)
	text = n.expandLinks(ctx, text)

	for _, s := range strip {
		if s == "" {
			continue
		}
		text = strings.ReplaceAll(text, s, "")
	}

	text = trailingSpaceRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// htmlToText конвертирует HTML-тело toot'а в plain text.
// Правила (как в twoot): <br> и <p> становятся переводами строк,
// ссылка-хэштег сворачивается в "#метку", любая другая ссылка — в свой URL.
// Plain text проходит насквозь (только с развёрнутыми entities).
func htmlToText(s string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))

	anchorDepth := 0
	anchorHref := ""
	var anchorText strings.Builder

	writeText := func(t string) {
		if anchorDepth > 0 {
			anchorText.WriteString(t)
		} else {
			sb.WriteString(t)
		}
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			writeText(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "br":
				writeText("\n")
			case "p":
				if sb.Len() > 0 && anchorDepth == 0 {
					sb.WriteString("\n\n")
				}
			case "a":
				anchorDepth++
				if anchorDepth == 1 {
					anchorText.Reset()
					anchorHref = ""
					for hasAttr {
						var k, v []byte
						var more bool
						k, v, more = z.TagAttr()
						if string(k) == "href" {
							anchorHref = string(v)
						}
						hasAttr = more
					}
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "a" && anchorDepth > 0 {
				anchorDepth--
				if anchorDepth == 0 {
					inner := anchorText.String()
					switch {
					case strings.HasPrefix(inner, "#"):
						sb.WriteString(inner)
					case anchorHref != "":
						sb.WriteString(anchorHref)
					default:
						sb.WriteString(inner)
					}
				}
			}
		}
	}
}

// expandLinks разворачивает каждую абсолютную ссылку в тексте через
// HEAD-запрос с редиректами. Неудача — не ошибка: оригинал остаётся.
func (n *Normalizer) expandLinks(ctx context.Context, text string) string {
	seen := map[string]bool{}
	for _, tok := range strings.Fields(text) {
		if seen[tok] {
			continue
		}
		u, err := url.Parse(tok)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}
		seen[tok] = true
		resolved, ok := n.resolve(ctx, tok)
		if ok && resolved != tok {
			text = strings.ReplaceAll(text, tok, resolved)
		}
	}
	return text
}

func (n *Normalizer) resolve(ctx context.Context, link string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return "", false
	}
	resp, err := n.http.Do(req)
	if err != nil {
		n.log.Warn("link resolution failed", "url", link, "err", err)
		return "", false
	}
	resp.Body.Close()
	return resp.Request.URL.String(), true
}
