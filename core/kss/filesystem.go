package kss

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/flowlabs-tech/labflow/core/logger"
)

// LocalFilesystem stores objects below a base folder and serves them through
// a route on the service router, guarded by HMAC-signed URLs. It is meant for
// development and tests; production deployments use the S3 driver.
type LocalFilesystem struct {
	baseFolder string
	publicURL  url.URL
	secret     []byte
}

// NewLocalFilesystem returns a new LocalFilesystem and registers its download
// route on the router. When no secret is provided a random one is generated;
// that only works in a single instance configuration.
func NewLocalFilesystem(router *mux.Router, baseFolder string, publicURL url.URL, secret []byte) (*LocalFilesystem, error) {
	if len(secret) == 0 {
		logger.Default().Warn("No secret provided to sign URLs, a random one will be generated")
		logger.Default().Warn("This can only work when running in a single instance configuration")
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	f := LocalFilesystem{baseFolder: baseFolder, publicURL: publicURL, secret: secret}

	logger.Default().Debugln("filesystem routes enabled")
	logger.Default().Debugln("  handle route: /kss/filesystem GET")
	router.Handle("/kss/filesystem", http.HandlerFunc(f.handler)).Methods(http.MethodGet)

	return &f, nil
}

// UploadData stores data below the base folder. The content type is kept
// alongside the object for the download response.
func (f LocalFilesystem) UploadData(key string, data []byte, contentType string) error {
	if strings.Contains(key, "..") {
		return fmt.Errorf(".. not allowed in keys")
	}
	dir := filepath.Join(f.baseFolder, key)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "content_type"), []byte(contentType), 0600); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "file"), data, 0600)
}

// GetPreSignedURL returns a URL for the download route, signed for the key and
// an absolute expiry time. Only Get is supported by this driver.
func (f LocalFilesystem) GetPreSignedURL(method Method, key string, expireIn time.Duration) (string, error) {
	if method != Get {
		return "", fmt.Errorf("%s unsupported method to presign '%s'", method, key)
	}
	expiry := strconv.FormatInt(time.Now().Add(expireIn).Unix(), 10)

	signedURL := f.publicURL
	signedURL.Path = "/kss/filesystem"
	values := url.Values{}
	values.Set("key", key)
	values.Set("expiry", expiry)
	values.Set("signature", f.sign(key, expiry))
	signedURL.RawQuery = values.Encode()
	return signedURL.String(), nil
}

func (f LocalFilesystem) sign(key, expiry string) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write([]byte(key + "\n" + expiry))
	return hex.EncodeToString(mac.Sum(nil))
}

func (f LocalFilesystem) handler(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	key := values.Get("key")
	expiry := values.Get("expiry")
	signature := values.Get("signature")

	if !hmac.Equal([]byte(signature), []byte(f.sign(key, expiry))) {
		logger.Default().Errorf("invalid signature for %s", r.URL.String())
		http.Error(w, "not authorized", http.StatusUnauthorized)
		return
	}
	expiresAt, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil || time.Now().Unix() > expiresAt {
		http.Error(w, "url expired", http.StatusUnauthorized)
		return
	}
	if strings.Contains(key, "..") {
		http.Error(w, ".. not authorized in keys", http.StatusBadRequest)
		return
	}

	logger.Default().Infof("Filesystem: [%s] key: '%s'", r.Method, key)
	if contentType, err := os.ReadFile(filepath.Join(f.baseFolder, key, "content_type")); err == nil {
		w.Header().Set("Content-Type", string(contentType))
	}
	http.ServeFile(w, r, filepath.Join(f.baseFolder, key, "file"))
}
