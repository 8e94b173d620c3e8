package main

// Repository — абстракция хранилища состояния профиля: курсоры последних
// увиденных постов и история пар зеркалирования.
type Repository interface {
	// GetCursor возвращает id последнего увиденного поста платформы.
	// ok == false означает cold start (курсор ещё не установлен).
	GetCursor(platform string) (id string, ok bool)

	// AdvanceCursor сразу и долговечно сохраняет новый курсор.
	// Затрагивает ровно одно поле; записи пар не трогает.
	AdvanceCursor(platform, id string) error

	// FindTweetForToot / FindTootForTweet — поиск мирора по id с любой
	// стороны. Просмотр идёт от новых записей к старым.
	FindTweetForToot(tootID string) (tweetID string, ok bool)
	FindTootForTweet(tweetID string) (tootID string, ok bool)

	// FlushPairs вызывается один раз в конце прогона: вливает накопленные
	// за прогон пары (в порядке создания) одной транзакцией и оставляет
	// не более maxPairs самых свежих записей.
	FlushPairs(pairs []Pairing, maxPairs int) error

	// CountPairs возвращает размер сохранённой истории пар.
	CountPairs() (int, error)

	Close() error
}

// findMirrorID ищет в repo мирор для поста платформы srcPlatform.
func findMirrorID(repo Repository, srcPlatform, id string) (string, bool) {
	if srcPlatform == platformMastodon {
		return repo.FindTweetForToot(id)
	}
	return repo.FindTootForTweet(id)
}
