package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidPath = errors.New("storage path is invalid")

// ObjectStorage keeps generated images on local disk and issues time-limited
// HMAC-signed URLs for retrieval, so image links can be handed to clients
// without an access token.
type ObjectStorage struct {
	basePath      string
	signingSecret []byte
	urlTTL        time.Duration
}

func NewObjectStorage(basePath, signingSecret string, urlTTL time.Duration) (*ObjectStorage, error) {
	if signingSecret == "" {
		return nil, errors.New("storage signing secret must not be empty")
	}
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &ObjectStorage{
		basePath:      basePath,
		signingSecret: []byte(signingSecret),
		urlTTL:        urlTTL,
	}, nil
}

func (s *ObjectStorage) resolvePath(path string) (string, error) {
	if path == "" || strings.Contains(path, "..") || strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.basePath, filepath.FromSlash(path)), nil
}

func (s *ObjectStorage) Save(path string, data io.Reader) error {
	filePath, err := s.resolvePath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), os.ModePerm); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	return err
}

func (s *ObjectStorage) Get(path string) (io.ReadCloser, error) {
	filePath, err := s.resolvePath(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s not found: %w", path, err)
		}
		return nil, err
	}

	return file, nil
}

func (s *ObjectStorage) Delete(path string) error {
	filePath, err := s.resolvePath(path)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if os.IsNotExist(err) {
		return nil
	}

	return err
}

// Remove deletes a batch of objects. It keeps going on individual failures
// and returns them joined, so the caller can log and move on.
func (s *ObjectStorage) Remove(paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := s.Delete(path); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

// SignedURL builds a retrieval URL under baseURL with an expiry and an HMAC
// signature over "path:expiry" in the query string.
func (s *ObjectStorage) SignedURL(baseURL, path string) (string, error) {
	if _, err := s.resolvePath(path); err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(s.urlTTL).Unix()
	params := url.Values{
		"path": {path},
		"exp":  {strconv.FormatInt(expiresAt, 10)},
		"sig":  {s.sign(path, expiresAt)},
	}
	return baseURL + "?" + params.Encode(), nil
}

// VerifySignedQuery checks the signature and expiry of a retrieval request.
func (s *ObjectStorage) VerifySignedQuery(path, expStr, sig string) bool {
	expiresAt, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return false
	}
	if time.Now().Unix() > expiresAt {
		return false
	}

	expected := s.sign(path, expiresAt)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (s *ObjectStorage) sign(path string, expiresAt int64) string {
	mac := hmac.New(sha256.New, s.signingSecret)
	fmt.Fprintf(mac, "%s:%d", path, expiresAt)
	return hex.EncodeToString(mac.Sum(nil))
}
