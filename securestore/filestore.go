package securestore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	saltFile   = ".salt"
	saltLength = 16
	fileSuffix = ".enc"
	hkdfInfo   = "smartop securestore v1"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var _ Store = (*FileStore)(nil)

// FileStore keeps one encrypted file per key inside a directory.
// Values are sealed with XChaCha20-Poly1305 under a key derived (HKDF-SHA256)
// from the device secret and a per-directory salt. The key name is bound as
// additional data, so a file copied under another name fails to open.
type FileStore struct {
	dir  string
	aead cipher.AEAD
	mu   sync.Mutex
}

// NewFileStore opens (creating if needed) an encrypted store rooted at dir.
func NewFileStore(dir, secret string) (*FileStore, error) {
	if secret == "" {
		return nil, errors.Wrap(apperrors.ErrInvalidInput, "[NewFileStore] secret is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] create directory")
	}

	salt, err := loadOrCreateSalt(filepath.Join(dir, saltFile))
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] salt")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), salt, []byte(hkdfInfo)), key); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] derive key")
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] cipher")
	}

	return &FileStore{dir: dir, aead: aead}, nil
}

func loadOrCreateSalt(path string) ([]byte, error) {
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltLength {
		return salt, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	salt = make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(path, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "FileStore.Get %s", key)
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead() {
		return "", false, errors.Wrapf(apperrors.ErrCorrupt, "FileStore.Get %s", key)
	}
	plain, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(key))
	if err != nil {
		return "", false, errors.Wrapf(apperrors.ErrCorrupt, "FileStore.Get %s", key)
	}
	return string(plain), true, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "FileStore.Set nonce")
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(path, sealed); err != nil {
		return errors.Wrapf(err, "FileStore.Set %s", key)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "FileStore.Delete %s", key)
	}
	return nil
}

func (s *FileStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", errors.Wrapf(apperrors.ErrInvalidInput, "invalid key %q", key)
	}
	return filepath.Join(s.dir, key+fileSuffix), nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
