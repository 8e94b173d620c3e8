package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Account — собственный аккаунт после verify_credentials.
type Account struct {
	ID       string
	Username string
}

// PlatformClient — контракт платформенного клиента, который потребляет
// engine. Реализации: MastodonClient, TwitterClient.
type PlatformClient interface {
	Platform() string
	VerifyCredentials(ctx context.Context) (Account, error)
	// ListRecentItems возвращает посты автора новее sinceID, newest-first.
	// Пустой sinceID — дефолтное окно платформы.
	ListRecentItems(ctx context.Context, authorID, sinceID string) ([]Item, error)
	Post(ctx context.Context, text, inReplyToID string, mediaIDs []string) (Item, error)
	Reshare(ctx context.Context, targetID string) (Item, error)
	UploadMedia(ctx context.Context, data []byte, contentType string) (string, error)
}

// EngineOptions — режимы прогона.
type EngineOptions struct {
	DryRun bool
	// AdvanceCursors разрешает запись курсоров при dry-run
	// (независимый флаг, сам по себе dry-run курсоры не двигает).
	AdvanceCursors bool
	MaxPairs       int
}

// Engine — синхронизатор: за один прогон зеркалит новые toot'ы в Twitter
// и новые tweet'ы в Mastodon. Между прогонами состояния не держит.
type Engine struct {
	repo     Repository
	mastodon PlatformClient
	twitter  PlatformClient
	norm     *Normalizer
	http     *http.Client
	log      *slog.Logger
	opts     EngineOptions

	// pending — пары этого прогона, в порядке создания.
	// Пишутся в repo одним FlushPairs в конце.
	pending []Pairing
}

func NewEngine(repo Repository, mastodon, twitter PlatformClient, httpClient *http.Client, log *slog.Logger, opts EngineOptions) *Engine {
	return &Engine{
		repo:     repo,
		mastodon: mastodon,
		twitter:  twitter,
		norm:     NewNormalizer(httpClient, log),
		http:     httpClient,
		log:      log,
		opts:     opts,
	}
}

// Run выполняет один прогон синхронизации. Ошибку возвращает только
// проверка учётных данных: всё остальное логируется и не прерывает batch.
func (e *Engine) Run(ctx context.Context) error {
	msAcct, err := e.mastodon.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("mastodon credentials: %w", err)
	}
	twAcct, err := e.twitter.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("twitter credentials: %w", err)
	}
	e.log.Debug("accounts verified",
		"mastodon", msAcct.Username, "twitter", twAcct.Username, "dry_run", e.opts.DryRun)

	// порядок как в twoot: сначала toots → tweets, потом tweets → toots
	e.syncDirection(ctx, e.mastodon, e.twitter, msAcct)
	e.syncDirection(ctx, e.twitter, e.mastodon, twAcct)

	e.flushPairs()
	return nil
}

// cursorWritesAllowed: при dry-run курсоры двигаются только по
// явному флагу AdvanceCursors.
func (e *Engine) cursorWritesAllowed() bool {
	return !e.opts.DryRun || e.opts.AdvanceCursors
}

// syncDirection забирает новые посты src и зеркалит их в dst.
func (e *Engine) syncDirection(ctx context.Context, src, dst PlatformClient, self Account) {
	srcName := src.Platform()

	sinceID, hasCursor := e.repo.GetCursor(srcName)
	items, err := src.ListRecentItems(ctx, self.ID, sinceID)
	if err != nil {
		e.log.Error("fetch failed", "platform", srcName, "err", err)
		return
	}
	e.log.Debug("fetched items", "platform", srcName, "count", len(items))

	// курсор уходит вперёд сразу после fetch, независимо от исхода
	// зеркалирования (известный trade-off: упавший пост не повторяется)
	if len(items) > 0 && e.cursorWritesAllowed() {
		if err := e.repo.AdvanceCursor(srcName, items[0].ID); err != nil {
			e.log.Error("cursor save failed", "platform", srcName, "err", err)
		}
	}

	if !hasCursor {
		// cold start: фиксируем текущую верхушку, историю не зеркалим
		e.log.Info("cold start, skipping existing items", "platform", srcName, "count", len(items))
		return
	}

	// от старых к новым: родители тредов получают пару раньше ответов
	for i := len(items) - 1; i >= 0; i-- {
		e.mirrorItem(ctx, src, dst, self, &items[i])
	}
}

// mirrorItem — классификация одного поста: skip / boost / reply / post.
func (e *Engine) mirrorItem(ctx context.Context, src, dst PlatformClient, self Account, it *Item) {
	srcName := src.Platform()
	dstName := dst.Platform()

	// уже есть пара с этим id (как оригинал или как созданный нами мирор)
	if _, ok := e.lookupMirror(srcName, it.ID); ok {
		e.log.Debug("already mirrored, skipping", "platform", srcName, "id", it.ID)
		return
	}

	if it.IsReshare() {
		mirrorID, ok := e.lookupMirror(srcName, it.ReshareOf.ID)
		if !ok {
			// boost чужого или выпавшего из окна пар поста не зеркалим
			e.log.Debug("reshare of unpaired item, skipping", "platform", srcName, "id", it.ID)
			return
		}
		if e.opts.DryRun {
			e.log.Info("dry-run: would reshare", "platform", dstName, "target", mirrorID)
			return
		}
		res, err := dst.Reshare(ctx, mirrorID)
		if err != nil {
			e.log.Error("reshare failed", "platform", dstName, "target", mirrorID, "err", err)
			return
		}
		e.recordPair(srcName, it.ID, res.ID)
		e.log.Info("boost mirrored", "src", srcName, "src_id", it.ID, "dst_id", res.ID)
		return
	}

	replyTo := ""
	if it.IsReply() {
		if it.InReplyToAuthorID != self.ID {
			// зеркалим только self-треды
			e.log.Debug("reply to another account, skipping", "platform", srcName, "id", it.ID)
			return
		}
		if mirrorID, ok := e.lookupMirror(srcName, it.InReplyToItemID); ok {
			replyTo = mirrorID
		}
		// мирор родителя не найден (старше окна пар) — пост уходит top-level
	}

	mediaIDs, prepared := e.mirrorAttachments(ctx, dst, it.Attachments)

	strip := make([]string, 0, len(it.Attachments))
	for _, m := range it.Attachments {
		strip = append(strip, m.URL)
	}
	text := e.norm.Plain(ctx, it.Body, strip)

	if e.opts.DryRun {
		e.log.Info("dry-run: would post", "platform", dstName,
			"reply_to", replyTo, "attachments", prepared, "text", text)
		return
	}

	res, err := dst.Post(ctx, text, replyTo, mediaIDs)
	if err != nil {
		e.log.Error("post failed", "platform", dstName, "src_id", it.ID, "err", err)
		return
	}
	e.recordPair(srcName, it.ID, res.ID)
	e.log.Info("item mirrored", "src", srcName, "src_id", it.ID,
		"dst_id", res.ID, "reply_to", replyTo, "attachments", len(mediaIDs))
}

// lookupMirror ищет мирор поста платформы srcPlatform: сначала в буфере
// этого прогона (от свежих к старым), затем в repo.
func (e *Engine) lookupMirror(srcPlatform, id string) (string, bool) {
	for i := len(e.pending) - 1; i >= 0; i-- {
		if e.pending[i].sideID(srcPlatform) == id {
			return e.pending[i].sideID(otherPlatform(srcPlatform)), true
		}
	}
	return findMirrorID(e.repo, srcPlatform, id)
}

// recordPair буферизует новую пару; на диск попадёт при flushPairs.
func (e *Engine) recordPair(srcPlatform, srcID, dstID string) {
	p := Pairing{}
	if srcPlatform == platformMastodon {
		p.MastodonID, p.TwitterID = srcID, dstID
	} else {
		p.MastodonID, p.TwitterID = dstID, srcID
	}
	e.pending = append(e.pending, p)
}

// flushPairs — единственная запись пар за прогон.
func (e *Engine) flushPairs() {
	if e.opts.DryRun {
		return
	}
	if err := e.repo.FlushPairs(e.pending, e.opts.MaxPairs); err != nil {
		// пары прогона потеряны: следующий прогон может продублировать
		// уже отзеркаленные, но не записанные посты
		e.log.Error("pairing flush failed", "count", len(e.pending), "err", err)
		return
	}
	if len(e.pending) > 0 {
		e.log.Debug("pairings flushed", "count", len(e.pending))
	}
}
