package main

// Platform identifiers used as cursor keys and in logs.
const (
	platformMastodon = "mastodon"
	platformTwitter  = "twitter"
)

// otherPlatform returns the opposite side of the bridge.
func otherPlatform(platform string) string {
	if platform == platformMastodon {
		return platformTwitter
	}
	return platformMastodon
}

// Item — платформо-независимое представление поста (toot или tweet).
// Заполняется адаптерами в mastodon.go / twitter.go; engine не знает
// про платформенные имена полей.
type Item struct {
	ID                string
	AuthorID          string
	Body              string // HTML у Mastodon, plain text у Twitter
	InReplyToItemID   string
	InReplyToAuthorID string
	ReshareOf         *Item // boost/retweet оригинала
	Attachments       []Media
}

// Media — ссылка на вложение в исходном посте. Платформы отдают только
// грубый тип ("image", "photo", "video"); настоящий MIME определяется
// по Content-Type при скачивании.
type Media struct {
	URL  string
	Kind string
}

// IsReshare returns true if the item is a boost/retweet of another item.
func (it *Item) IsReshare() bool {
	return it.ReshareOf != nil
}

// IsReply returns true if the item is a reply to some item.
func (it *Item) IsReply() bool {
	return it.InReplyToAuthorID != ""
}

// Pairing — соответствие между зеркалированными постами двух платформ.
// Инвариант: каждый id встречается максимум в одной паре (в своей колонке).
type Pairing struct {
	MastodonID string
	TwitterID  string
}

// sideID returns the pairing id belonging to the given platform.
func (p Pairing) sideID(platform string) string {
	if platform == platformMastodon {
		return p.MastodonID
	}
	return p.TwitterID
}
