package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rata-backend/apperrors"
)

type memoryBlob struct {
	key         string
	contentType string
	data        []byte
	err         error
}

func (b *memoryBlob) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.key, b.contentType, b.data = key, contentType, data
	return "https://files.example.com/" + key, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestUploadServiceStoresAllowedTypes(t *testing.T) {
	blob := &memoryBlob{}
	s := NewUploadService(blob, 1<<20)
	s.now = func() time.Time { return time.Unix(0, 42) }

	url, err := s.StoreMemberProof(context.Background(), "g1", "bob", bytes.NewReader(pngHeader), int64(len(pngHeader)))
	require.NoError(t, err)
	assert.Equal(t, "proofs/g1/bob/42.png", blob.key)
	assert.Equal(t, "https://files.example.com/proofs/g1/bob/42.png", url)
	assert.Equal(t, "image/png", blob.contentType)
	assert.Equal(t, pngHeader, blob.data)

	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
	_, err = s.StoreGroupReceipt(context.Background(), "g1", bytes.NewReader(pdf), int64(len(pdf)))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(blob.key, "receipts/g1/"))
	assert.Equal(t, "application/pdf", blob.contentType)
}

func TestUploadServiceRejections(t *testing.T) {
	ctx := context.Background()
	s := NewUploadService(&memoryBlob{}, 64)

	text := []byte("hola, esto no es una imagen")
	_, err := s.StoreBillProof(ctx, "b1", "f1", bytes.NewReader(text), int64(len(text)))
	requireAppError(t, err, apperrors.ValidationError)

	_, err = s.StoreBillProof(ctx, "b1", "f1", bytes.NewReader(pngHeader), 65)
	requireAppError(t, err, apperrors.ValidationError)

	_, err = s.StoreBillProof(ctx, "b1", "f1", bytes.NewReader(nil), 0)
	requireAppError(t, err, apperrors.ValidationError)

	disabled := NewUploadService(nil, 64)
	assert.False(t, disabled.Enabled())
	_, err = disabled.StoreMemberProof(ctx, "g1", "bob", bytes.NewReader(pngHeader), int64(len(pngHeader)))
	requireAppError(t, err, apperrors.ValidationError)

	failing := NewUploadService(&memoryBlob{err: errors.New("bucket gone")}, 1<<20)
	_, err = failing.StoreMemberProof(ctx, "g1", "bob", bytes.NewReader(pngHeader), int64(len(pngHeader)))
	requireAppError(t, err, apperrors.UpstreamError)
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, validateKey("proofs/g1/bob/1.png"))
	assert.Error(t, validateKey("proofs/../secrets"))
	assert.Error(t, validateKey(""))
}
