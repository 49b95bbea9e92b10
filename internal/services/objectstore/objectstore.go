package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/princekumarofficial/chat-media-service/internal/config"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidRange   = errors.New("invalid range")
)

// Object is an open object stream. Callers must close Body.
type Object struct {
	Body         io.ReadCloser
	Name         string
	ContentType  string
	Size         int64
	ETag         string
	LastModified time.Time
	// Range is set when a byte range was served; Size stays the full size.
	Range *ByteRange
}

// ByteRange is an inclusive byte range.
type ByteRange struct {
	Start, End int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

// ContentRange renders the Content-Range header value for an object of size.
func (r ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, size)
}

// Service reads chat attachments from the secondary object store.
type Service struct {
	client     *minio.Client
	bucketName string
}

// NewService connects to MinIO and makes sure the bucket exists.
func NewService(ctx context.Context, cfg config.MinIO) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	service := &Service{client: client, bucketName: cfg.BucketName}
	if err := service.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return service, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Stat returns metadata of objectName.
func (s *Service) Stat(ctx context.Context, objectName string) (minio.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, mapError(err)
	}
	return info, nil
}

// Open streams objectName. rangeHeader is an optional HTTP Range value; only
// a single "bytes=" range is honoured.
func (s *Service) Open(ctx context.Context, objectName, rangeHeader string) (*Object, error) {
	info, err := s.Stat(ctx, objectName)
	if err != nil {
		return nil, err
	}

	opts := minio.GetObjectOptions{}
	var byteRange *ByteRange
	if rangeHeader != "" {
		br, err := ParseRange(rangeHeader, info.Size)
		if err != nil {
			return nil, err
		}
		if err := opts.SetRange(br.Start, br.End); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		byteRange = &br
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, opts)
	if err != nil {
		return nil, mapError(err)
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Object{
		Body:         obj,
		Name:         objectName,
		ContentType:  contentType,
		Size:         info.Size,
		ETag:         info.ETag,
		LastModified: info.LastModified,
		Range:        byteRange,
	}, nil
}

func mapError(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return fmt.Errorf("object store: %w", err)
}

// ParseRange parses a single "bytes=start-end", "bytes=start-" or
// "bytes=-suffix" range against an object of size bytes.
func ParseRange(header string, size int64) (ByteRange, error) {
	ranges, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(ranges, ",") {
		return ByteRange{}, ErrInvalidRange
	}
	startStr, endStr, ok := strings.Cut(ranges, "-")
	if !ok || size <= 0 {
		return ByteRange{}, ErrInvalidRange
	}

	if startStr == "" {
		suffix, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffix <= 0 {
			return ByteRange{}, ErrInvalidRange
		}
		if suffix > size {
			suffix = size
		}
		return ByteRange{Start: size - suffix, End: size - 1}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return ByteRange{}, ErrInvalidRange
	}
	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return ByteRange{}, ErrInvalidRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return ByteRange{Start: start, End: end}, nil
}
