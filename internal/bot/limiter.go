package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

const maxTrackedChats = 10000

// Limiter ограничивает частоту команд отдельно для каждого чата.
type Limiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewLimiter создаёт ограничитель. perSecond <= 0 отключает ограничение.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[int64]*rate.Limiter),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

// Allow сообщает, можно ли обработать очередную команду чата.
func (l *Limiter) Allow(chatID int64) bool {
	if l == nil || l.rate <= 0 {
		return true
	}
	return l.limiter(chatID).Allow()
}

func (l *Limiter) limiter(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[chatID]
	if !ok {
		if len(l.limiters) >= maxTrackedChats {
			l.limiters = make(map[int64]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[chatID] = lim
	}
	return lim
}
