package content

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// History remembers recently shown content so prompts can steer providers
// away from repeating themselves. Bounded; oldest entries fall off.
type History struct {
	cache *lru.Cache[string, time.Time]
}

func NewHistory(size int) (*History, error) {
	cache, err := lru.New[string, time.Time](size)
	if err != nil {
		return nil, err
	}
	return &History{cache: cache}, nil
}

func (h *History) Remember(text string) {
	if h == nil || text == "" {
		return
	}
	h.cache.Add(text, time.Now())
}

// Recent returns up to max remembered texts, most recent first.
func (h *History) Recent(max int) []string {
	if h == nil {
		return nil
	}
	keys := h.cache.Keys()
	var out []string
	for i := len(keys) - 1; i >= 0 && len(out) < max; i-- {
		out = append(out, keys[i])
	}
	return out
}
