// Package storage archives generated SOPs to S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/sirupsen/logrus"

	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/config"
	"github.com/Mdia92/bone-framework-kiroween-edition/pkg/types"
)

const (
	s3Service      = "s3"
	defaultRegion  = "us-east-1"
	defaultPrefix  = "sops"
	maxErrorDetail = 256
)

// Archive stores SOP documents.
type Archive interface {
	Put(ctx context.Context, sop *types.SOP) (string, error)
}

// S3Archive writes SOPs as JSON objects with path-style SigV4 signed PUTs.
type S3Archive struct {
	log         logrus.FieldLogger
	cfg         config.StorageConfig
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	httpClient  *http.Client
	now         func() time.Time
}

var _ Archive = (*S3Archive)(nil)

// NewS3Archive creates an archive. A nil cfg yields nil.
func NewS3Archive(log logrus.FieldLogger, cfg *config.StorageConfig, httpClient *http.Client) *S3Archive {
	if cfg == nil {
		return nil
	}

	c := *cfg
	if c.Region == "" {
		c.Region = defaultRegion
	}

	if c.Prefix == "" {
		c.Prefix = defaultPrefix
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &S3Archive{
		log:         log.WithField("component", "archive"),
		cfg:         c,
		credentials: credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		signer:      v4.NewSigner(),
		httpClient:  httpClient,
		now:         time.Now,
	}
}

// Bucket returns the configured bucket name.
func (a *S3Archive) Bucket() string {
	return a.cfg.Bucket
}

// Key returns the object key for sop: <prefix>/<category>/<id>.json.
func (a *S3Archive) Key(sop *types.SOP) string {
	return path.Join(a.cfg.Prefix, strings.ToLower(string(sop.Category)), sop.ID+".json")
}

// Put uploads sop and returns its object key.
func (a *S3Archive) Put(ctx context.Context, sop *types.SOP) (string, error) {
	if sop == nil || sop.ID == "" {
		return "", errors.New("archive: document has no id")
	}

	body, err := json.Marshal(sop)
	if err != nil {
		return "", fmt.Errorf("encoding document: %w", err)
	}

	key := a.Key(sop)

	target, err := a.objectURL(key)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	hash := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(hash[:])

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Amz-Content-Sha256", payloadHash)

	creds, err := a.credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("retrieving credentials: %w", err)
	}

	if err := a.signer.SignHTTP(ctx, creds, req, payloadHash, s3Service, a.cfg.Region, a.now()); err != nil {
		return "", fmt.Errorf("signing request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))

		return "", fmt.Errorf("uploading %s: status %d: %s", key, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	a.log.WithFields(logrus.Fields{
		"bucket": a.cfg.Bucket,
		"key":    key,
		"bytes":  len(body),
	}).Debug("Archived SOP")

	return key, nil
}

func (a *S3Archive) objectURL(key string) (string, error) {
	base, err := url.Parse(a.cfg.Endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid storage endpoint %q", a.cfg.Endpoint)
	}

	return base.JoinPath(a.cfg.Bucket, key).String(), nil
}
