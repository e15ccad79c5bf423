package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	StorageFile     = "file"
	StorageKeychain = "keychain"
)

// StoredToken is the identity layer's own session cache entry: the tokens a
// grant handed back plus the scope set they were minted for. It lives next
// to, not inside, the broker's authentication record.
type StoredToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

type cacheFile struct {
	Accounts map[string]StoredToken `json:"accounts"`
}

// TokenCache persists one StoredToken per account, either in a JSON file or
// in the OS keychain.
type TokenCache struct {
	Backend string
	Path    string // file backend
	Service string // keychain service name
}

func NewTokenCache(backend, path, service string) (*TokenCache, error) {
	if backend == "" {
		backend = StorageFile
	}
	if backend != StorageFile && backend != StorageKeychain {
		return nil, fmt.Errorf("unsupported token storage backend: %s", backend)
	}
	if backend == StorageFile && path == "" {
		return nil, errors.New("token cache path is required for file storage")
	}
	if service == "" {
		service = "kubedeck"
	}
	return &TokenCache{Backend: backend, Path: path, Service: service}, nil
}

func (c *TokenCache) Get(account string) (StoredToken, bool, error) {
	if c.Backend == StorageKeychain {
		secret, err := keyring.Get(c.Service, account)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return StoredToken{}, false, nil
			}
			return StoredToken{}, false, fmt.Errorf("keychain read failed: %w", err)
		}
		var token StoredToken
		if err := json.Unmarshal([]byte(secret), &token); err != nil {
			return StoredToken{}, false, fmt.Errorf("failed to parse keychain token: %w", err)
		}
		return token, true, nil
	}
	cache, err := loadCacheFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return StoredToken{}, false, nil
		}
		return StoredToken{}, false, err
	}
	token, ok := cache.Accounts[account]
	return token, ok, nil
}

func (c *TokenCache) Put(account string, token StoredToken) error {
	if c.Backend == StorageKeychain {
		content, err := json.Marshal(token)
		if err != nil {
			return err
		}
		if err := keyring.Set(c.Service, account, string(content)); err != nil {
			return fmt.Errorf("keychain write failed: %w", err)
		}
		return nil
	}
	cache, err := loadCacheFile(c.Path)
	if err != nil {
		cache = &cacheFile{Accounts: map[string]StoredToken{}}
	}
	cache.Accounts[account] = token
	return saveCacheFile(c.Path, cache)
}

func (c *TokenCache) Delete(account string) error {
	if c.Backend == StorageKeychain {
		if err := keyring.Delete(c.Service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keychain delete failed: %w", err)
		}
		return nil
	}
	cache, err := loadCacheFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	delete(cache.Accounts, account)
	return saveCacheFile(c.Path, cache)
}

func loadCacheFile(path string) (*cacheFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cache cacheFile
	if err := json.Unmarshal(content, &cache); err != nil {
		return nil, fmt.Errorf("failed to parse token cache: %w", err)
	}
	if cache.Accounts == nil {
		cache.Accounts = map[string]StoredToken{}
	}
	return &cache, nil
}

func saveCacheFile(path string, cache *cacheFile) error {
	if cache.Accounts == nil {
		cache.Accounts = map[string]StoredToken{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token cache dir: %w", err)
	}
	content, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}
