package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"rata-backend/apperrors"
	"rata-backend/logger"
)

// BlobStorage stores an object and returns the URL it can be fetched from.
type BlobStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// S3BlobStorage works against AWS S3 or any S3-compatible endpoint.
type S3BlobStorage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

func NewS3BlobStorage(cfg S3Config) *S3BlobStorage {
	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}

	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return &S3BlobStorage{
		client:        s3.New(opts),
		bucket:        cfg.Bucket,
		publicBaseURL: base,
	}
}

// validateKey rejects storage keys containing path traversal segments.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty storage key")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("path traversal detected in storage key")
		}
	}
	return nil
}

func (s *S3BlobStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object failed: %w", err)
	}
	return s.publicBaseURL + "/" + key, nil
}

var allowedUploadMimes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

// UploadService validates payment proofs and receipts before they reach blob storage.
type UploadService struct {
	blob     BlobStorage
	maxBytes int64
	now      Clock
}

func NewUploadService(blob BlobStorage, maxBytes int64) *UploadService {
	return &UploadService{blob: blob, maxBytes: maxBytes, now: time.Now}
}

func (s *UploadService) Enabled() bool {
	return s != nil && s.blob != nil
}

// StoreMemberProof uploads a member's proof of payment to the admin.
func (s *UploadService) StoreMemberProof(ctx context.Context, groupID, memberID string, body io.Reader, size int64) (string, error) {
	return s.store(ctx, fmt.Sprintf("proofs/%s/%s", groupID, memberID), body, size)
}

// StoreGroupReceipt uploads the admin's consolidated receipt.
func (s *UploadService) StoreGroupReceipt(ctx context.Context, groupID string, body io.Reader, size int64) (string, error) {
	return s.store(ctx, fmt.Sprintf("receipts/%s", groupID), body, size)
}

func (s *UploadService) StoreBillProof(ctx context.Context, billID, friendID string, body io.Reader, size int64) (string, error) {
	return s.store(ctx, fmt.Sprintf("bills/%s/%s", billID, friendID), body, size)
}

func (s *UploadService) store(ctx context.Context, prefix string, body io.Reader, size int64) (string, error) {
	if !s.Enabled() {
		return "", apperrors.Validation("file uploads are not enabled", "send the proof URL instead")
	}
	if size <= 0 {
		return "", apperrors.Validation("empty file", "")
	}
	if size > s.maxBytes {
		return "", apperrors.Validation("file too large", fmt.Sprintf("maximum size is %d bytes", s.maxBytes))
	}

	sniff := make([]byte, 512)
	n, err := io.ReadFull(body, sniff)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", apperrors.Validation("could not read file", err.Error())
	}
	detected := mimetype.Detect(sniff[:n])
	if !allowedUploadMimes[detected.String()] {
		return "", apperrors.Validation("file type not allowed",
			fmt.Sprintf("%s is not allowed; use jpeg, png, webp, heic or pdf", detected.String()))
	}

	key := fmt.Sprintf("%s/%d%s", prefix, s.now().UnixNano(), detected.Extension())
	reader := io.LimitReader(io.MultiReader(bytes.NewReader(sniff[:n]), body), s.maxBytes)

	url, err := s.blob.Put(ctx, key, reader, size, detected.String())
	if err != nil {
		logger.GetLogger().Errorw("Upload failed", "key", key, "error", err)
		return "", apperrors.Upstream(err, "failed to store file")
	}
	return url, nil
}
