package main

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// downloadAttachment скачивает вложение с исходной платформы.
// Не-2xx статус или не-image Content-Type — вложение отбрасывается.
func (e *Engine) downloadAttachment(ctx context.Context, m Media) (data []byte, contentType string, ok bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		e.log.Warn("media request failed", "url", m.URL, "err", err)
		return nil, "", false
	}

	resp, err := e.http.Do(req)
	if err != nil {
		e.log.Warn("media download failed", "url", m.URL, "err", err)
		return nil, "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.log.Warn("media download status", "url", m.URL, "status", resp.StatusCode)
		return nil, "", false
	}

	contentType = resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		e.log.Warn("media is not an image, skipping", "url", m.URL, "content_type", contentType)
		return nil, "", false
	}

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		e.log.Warn("media read failed", "url", m.URL, "err", err)
		return nil, "", false
	}
	return data, contentType, true
}

// mirrorAttachments переносит вложения на платформу назначения.
// Неудача одного вложения не отменяет пост: остальные и текст уходят.
// Возвращает id загруженных медиа и число успешно подготовленных
// (при dry-run загрузки нет, считаются только скачивания).
func (e *Engine) mirrorAttachments(ctx context.Context, dst PlatformClient, atts []Media) (mediaIDs []string, prepared int) {
	for _, m := range atts {
		data, contentType, ok := e.downloadAttachment(ctx, m)
		if !ok {
			continue
		}
		prepared++
		if e.opts.DryRun {
			continue
		}
		id, err := dst.UploadMedia(ctx, data, contentType)
		if err != nil {
			e.log.Warn("media upload failed", "platform", dst.Platform(), "url", m.URL, "err", err)
			continue
		}
		mediaIDs = append(mediaIDs, id)
	}
	return mediaIDs, prepared
}
