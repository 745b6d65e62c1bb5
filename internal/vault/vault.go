// internal/vault/vault.go
//
// Vault client wrapper.
//
// Context
// -------
//   - Resolves `vault:<path>#<key>` connection strings at boot, see
//     config.ResolveSecrets.  *Client satisfies config.SecretResolver.
//   - Keeps the token alive with a background renewal loop and caches
//     KV-v2 values per path#key for a caller-chosen TTL.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)               // during boot.
//  2. dsn, err := cli.GetKV(ctx, path, key, ttl)    // resolve a secret.
//
// Environment: VAULT_ADDR, VAULT_TOKEN (falls back to ~/.vault-token),
// plus every other variable the Vault SDK reads.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the secret exists but lacks the key.
var ErrNotFound = errors.New("vault: key not found")

// kvReader reads one KV-v2 secret.
type kvReader func(ctx context.Context, mount, rel string) (map[string]any, error)

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api  *vault.Client
	read kvReader
	log  *zap.SugaredLogger

	cacheMu sync.RWMutex
	cache   map[string]cached // path#key → value + expiry
	now     func() time.Time
}

type cached struct {
	val string
	exp time.Time
}

// New builds a client from the environment and starts token renewal,
// which stops when ctx is done.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.S()
	}
	cfg := vault.DefaultConfig()
	if err := cfg.Error; err != nil {
		return nil, fmt.Errorf("vault config: %w", err)
	}
	api, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}

	c := newClient(func(ctx context.Context, mount, rel string) (map[string]any, error) {
		sec, err := api.KVv2(mount).Get(ctx, rel)
		if err != nil {
			return nil, err
		}
		return sec.Data, nil
	}, log)
	c.api = api

	go c.renewLoop(ctx)
	return c, nil
}

func newClient(read kvReader, log *zap.SugaredLogger) *Client {
	return &Client{
		read:  read,
		log:   log,
		cache: make(map[string]cached),
		now:   time.Now,
	}
}

// GetKV fetches key from the KV-v2 secret at secretPath, whose first
// segment is the mount.  With ttl > 0 the value is cached that long.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("vault: secret path and key must be non-empty")
	}
	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		cv, ok := c.cache[canonical]
		c.cacheMu.RUnlock()
		if ok && c.now().Before(cv.exp) {
			return cv.val, nil
		}
	}

	mount, rel := splitMount(secretPath)
	data, err := c.read(ctx, mount, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}
	raw, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%w: %q in %q", ErrNotFound, key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault: value at %s is not a string", canonical)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: c.now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	c.log.Debugw("vault secret read", "path", secretPath, "key", key)
	return sval, nil
}

/*──────────────────────────── token renewal ───────────────────────────────*/

// renewLoop watches the token with a LifetimeWatcher and restarts it
// with exponential backoff whenever renewal stops.
func (c *Client) renewLoop(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 15 * time.Second
	bo.MaxInterval = time.Hour
	bo.MaxElapsedTime = 0

	for {
		renewed := c.watchOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if renewed {
			bo.Reset()
		}
		if !sleep(ctx, bo.NextBackOff()) {
			return
		}
	}
}

// watchOnce runs one watcher until it stops; it reports whether at least
// one renewal succeeded.
func (c *Client) watchOnce(ctx context.Context) bool {
	sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
	if err != nil {
		c.log.Warnw("vault token renew failed", "err", err)
		return false
	}
	if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
		c.log.Infow("vault token is not renewable")
		return false
	}

	w, err := c.api.NewLifetimeWatcher(&vault.LifetimeWatcherInput{Secret: sec})
	if err != nil {
		c.log.Warnw("vault watcher init", "err", err)
		return false
	}
	go w.Start()
	defer w.Stop()

	renewed := false
	for {
		select {
		case <-ctx.Done():
			return renewed
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return renewed
		case ev := <-w.RenewCh():
			renewed = true
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func splitMount(p string) (mount, rel string) {
	mount, rel, _ = strings.Cut(p, "/")
	return mount, rel
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
