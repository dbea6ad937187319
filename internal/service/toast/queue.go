// Package toast は画面に一時的に表示するメッセージのキューです
package toast

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level はメッセージの重要度です
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultTTL は表示期間の既定値です
const DefaultTTL = 5 * time.Second

// subscriberBuffer を超えて溜まったメッセージは購読者ごとに捨てられます
const subscriberBuffer = 32

// Toast は一時メッセージです
type Toast struct {
	ID        string
	Level     Level
	Title     string
	Message   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Pusher はメッセージを積む側のインターフェースです
type Pusher interface {
	Push(level Level, title, message string) string
}

// Queue は一時メッセージの保持と配信を行います
// 複数の goroutine から安全に利用できます
type Queue struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	active []Toast
	subs   map[int]chan Toast
	nextID int
}

// NewQueue は ttl で期限切れになるキューを作成します
func NewQueue(ttl time.Duration) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		ttl:  ttl,
		now:  time.Now,
		subs: make(map[int]chan Toast),
	}
}

// Push はメッセージを追加し、購読者に配信します
// 受信が追いつかない購読者には配信せず、Push はブロックしません
func (q *Queue) Push(level Level, title, message string) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	t := Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(q.ttl),
	}
	q.active = append(q.pruneLocked(now), t)

	for _, ch := range q.subs {
		select {
		case ch <- t:
		default:
		}
	}
	return t.ID
}

// Subscribe は以降に追加されるメッセージを受け取るチャネルを返します
// 返された cancel を呼ぶとチャネルは閉じられます
func (q *Queue) Subscribe() (<-chan Toast, func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID
	q.nextID++
	ch := make(chan Toast, subscriberBuffer)
	q.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			delete(q.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Dismiss は期限前のメッセージを取り除きます
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.active {
		if t.ID == id {
			q.active = append(q.active[:i], q.active[i+1:]...)
			return true
		}
	}
	return false
}

// Active は期限内のメッセージを古い順に返します
func (q *Queue) Active() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.active = q.pruneLocked(q.now())
	out := make([]Toast, len(q.active))
	copy(out, q.active)
	return out
}

func (q *Queue) pruneLocked(now time.Time) []Toast {
	kept := q.active[:0]
	for _, t := range q.active {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	return kept
}
