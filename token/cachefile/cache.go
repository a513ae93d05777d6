// Package cachefile stores connection tokens as one JSON file per connection.
// With a passphrase configured the token is sealed with NaCl secretbox under
// a key derived with scrypt.
package cachefile

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	ierrors "github.com/jrsteele09/go-sso-connect/internal/errors"
	"github.com/jrsteele09/go-sso-connect/token"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	envelopeVersion = 1
	fileExt         = ".json"

	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var _ token.Cache = (*Cache)(nil)

type envelope struct {
	Version      int          `json:"version"`
	ConnectionID string       `json:"connectionId"`
	Token        *token.Token `json:"token,omitempty"`
	Salt         []byte       `json:"salt,omitempty"`
	Nonce        []byte       `json:"nonce,omitempty"`
	Sealed       []byte       `json:"sealed,omitempty"`
}

// Cache is a directory of token files. It remembers which file belongs to
// which connection so removals seen by a file watcher can be mapped back.
type Cache struct {
	dir        string
	passphrase []byte

	mu    sync.RWMutex
	index map[string]string // file name to connection id
}

type Option func(*Cache)

// WithPassphrase seals every token written from now on.
func WithPassphrase(passphrase string) Option {
	return func(c *Cache) {
		if passphrase != "" {
			c.passphrase = []byte(passphrase)
		}
	}
}

func New(dir string, options ...Option) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("[cachefile.New] dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("[cachefile.New] create %s: %w", dir, err)
	}
	c := &Cache{
		dir:   dir,
		index: make(map[string]string),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (c *Cache) Dir() string {
	return c.dir
}

// FileName is the stable file name of a connection's token.
func FileName(connectionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(connectionID)).String() + fileExt
}

// Path returns the full path of the connection's token file.
func (c *Cache) Path(connectionID string) string {
	return filepath.Join(c.dir, FileName(connectionID))
}

// Track registers connection ids so that ConnectionID can resolve their files.
func (c *Cache) Track(connectionIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range connectionIDs {
		c.index[FileName(id)] = id
	}
}

// ConnectionID maps a path inside the cache directory to its connection.
func (c *Cache) ConnectionID(path string) (string, bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.index[name]
	return id, ok
}

func (c *Cache) Load(connectionID string) (*token.Token, error) {
	c.Track(connectionID)

	data, err := os.ReadFile(c.Path(connectionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, token.ErrNotCached
	}
	if err != nil {
		return nil, ierrors.Wrapf(err, "read token cache")
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrCorruptRecord, err)
	}
	if env.ConnectionID != connectionID {
		return nil, fmt.Errorf("%w: token file belongs to %q", ierrors.ErrCorruptRecord, env.ConnectionID)
	}
	if env.Token != nil {
		return env.Token, nil
	}
	return c.open(&env)
}

func (c *Cache) Save(connectionID string, tok *token.Token) error {
	if tok == nil {
		return errors.New("[cachefile.Save] token is required")
	}
	env := envelope{Version: envelopeVersion, ConnectionID: connectionID}
	if len(c.passphrase) == 0 {
		env.Token = tok
	} else if err := c.seal(&env, tok); err != nil {
		return err
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return ierrors.Wrapf(err, "marshal token cache")
	}
	c.Track(connectionID)

	path := c.Path(connectionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return ierrors.Wrapf(err, "write token cache")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return ierrors.Wrapf(err, "write token cache")
	}
	return nil
}

func (c *Cache) Delete(connectionID string) error {
	err := os.Remove(c.Path(connectionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return ierrors.Wrapf(err, "delete token cache")
	}
	return nil
}

func (c *Cache) seal(env *envelope, tok *token.Token) error {
	plain, err := json.Marshal(tok)
	if err != nil {
		return ierrors.Wrapf(err, "marshal token")
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return ierrors.Wrapf(err, "generate salt")
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return ierrors.Wrapf(err, "generate nonce")
	}
	key, err := c.deriveKey(salt)
	if err != nil {
		return err
	}
	env.Salt = salt
	env.Nonce = nonce[:]
	env.Sealed = secretbox.Seal(nil, plain, &nonce, key)
	return nil
}

func (c *Cache) open(env *envelope) (*token.Token, error) {
	if len(c.passphrase) == 0 {
		return nil, fmt.Errorf("%w: cached token is sealed", ierrors.ErrInvalidPassphrase)
	}
	if len(env.Nonce) != nonceSize {
		return nil, fmt.Errorf("%w: bad nonce", ierrors.ErrCorruptRecord)
	}
	key, err := c.deriveKey(env.Salt)
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	plain, ok := secretbox.Open(nil, env.Sealed, &nonce, key)
	if !ok {
		return nil, ierrors.ErrInvalidPassphrase
	}
	var tok token.Token
	if err := json.Unmarshal(plain, &tok); err != nil {
		return nil, fmt.Errorf("%w: %v", ierrors.ErrCorruptRecord, err)
	}
	return &tok, nil
}

func (c *Cache) deriveKey(salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key(c.passphrase, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, ierrors.Wrapf(err, "derive cache key")
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
