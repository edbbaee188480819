package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ReplyCache stores raw model replies keyed by model and prompt.
type ReplyCache struct {
	Dir         string
	StrictPerms bool
}

// ReplyKey digests the model name and the full prompt text.
func ReplyKey(model string, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *ReplyCache) path(key string) string {
	return filepath.Join(c.Dir, key+replySuffix)
}

// Get returns the cached reply. A miss is not an error.
func (c *ReplyCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if c == nil || c.Dir == "" {
		return nil, false, errors.New("cache dir not configured")
	}
	p := c.path(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, true, nil
}

// Save writes the reply for key.
func (c *ReplyCache) Save(_ context.Context, key string, data []byte) error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	if err := mkdir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	return os.WriteFile(c.path(key), data, fileMode(c.StrictPerms))
}
