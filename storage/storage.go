// Package storage keeps application binaries and configuration
// objects in an S3 bucket and hands out presigned download links.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "paskoocheh.storage")

var (
	ErrValidation = errors.New("storage: invalid argument")
	ErrAWS        = errors.New("storage: aws request failed")
)

// DefaultLinkTTL is how long a temporary download link stays valid.
const DefaultLinkTTL = 15 * time.Minute

// S3API is the slice of the S3 client the store calls.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// PresignAPI is the slice of the presign client the store calls.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Store struct {
	s3      S3API
	presign PresignAPI
	bucket  string
	region  string
	now     func() time.Time
}

func New(s3api S3API, presign PresignAPI, bucket, region string) *Store {
	return &Store{
		s3:      s3api,
		presign: presign,
		bucket:  bucket,
		region:  region,
		now:     time.Now,
	}
}

// NewFromConfig wires the store to a real S3 client.
func NewFromConfig(cfg aws.Config, bucket string) *Store {
	client := s3.NewFromConfig(cfg)
	return New(client, s3.NewPresignClient(client), bucket, cfg.Region)
}

// BuildKeyName composes the canonical object key for an app release.
func BuildKeyName(osName, appName, fileName string) (string, error) {
	if osName == "" || appName == "" || fileName == "" {
		return "", errors.Wrap(ErrValidation, "empty key component")
	}
	return strings.ToLower(osName) + "/" + appName + "/" + fileName, nil
}

// BuildStaticLink returns the permanent virtual-hosted URL of an
// object, for buckets with public read access.
func (s *Store) BuildStaticLink(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

func (s *Store) GetBinary(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.Wrap(ErrValidation, "empty key")
	}

	out, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(ErrAWS, "get %s: %v", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrapf(ErrAWS, "read %s: %v", key, err)
	}
	return body, nil
}

func (s *Store) PutBinary(ctx context.Context, key string, body []byte) error {
	if key == "" {
		return errors.Wrap(ErrValidation, "empty key")
	}

	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return errors.Wrapf(ErrAWS, "put %s: %v", key, err)
	}

	logger.WithFields(logrus.Fields{"key": key, "size": len(body)}).Debug("object stored")
	return nil
}

// GetJSON reads an object and unmarshals it into v.
func (s *Store) GetJSON(ctx context.Context, key string, v interface{}) error {
	body, err := s.GetBinary(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}
	return nil
}

// ObjectMetadata returns the user metadata attached to an object.
func (s *Store) ObjectMetadata(ctx context.Context, key string) (map[string]string, error) {
	if key == "" {
		return nil, errors.Wrap(ErrValidation, "empty key")
	}

	out, err := s.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(ErrAWS, "head %s: %v", key, err)
	}
	return out.Metadata, nil
}

// SetObjectMetadata replaces the user metadata of an object via a
// same-key copy, which is the only way S3 rewrites metadata in place.
func (s *Store) SetObjectMetadata(ctx context.Context, key string, metadata map[string]string) error {
	if key == "" {
		return errors.Wrap(ErrValidation, "empty key")
	}

	_, err := s.s3.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:            aws.String(s.bucket),
		Key:               aws.String(key),
		CopySource:        aws.String(s.bucket + "/" + key),
		Metadata:          metadata,
		MetadataDirective: types.MetadataDirectiveReplace,
	})
	if err != nil {
		return errors.Wrapf(ErrAWS, "copy %s: %v", key, err)
	}
	return nil
}

// TempLink presigns a GET for the object, valid for expires (or
// DefaultLinkTTL when zero).
func (s *Store) TempLink(ctx context.Context, key string, expires time.Duration) (string, error) {
	if key == "" {
		return "", errors.Wrap(ErrValidation, "empty key")
	}
	if expires <= 0 {
		expires = DefaultLinkTTL
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = expires
	})
	if err != nil {
		return "", errors.Wrapf(ErrAWS, "presign %s: %v", key, err)
	}
	return req.URL, nil
}

// PutDocFile stores a user-submitted document under a timestamped key
// together with a sibling .cap object holding its caption. Returns
// the document key.
func (s *Store) PutDocFile(ctx context.Context, prefix, fileName string, body []byte, caption string) (string, error) {
	if fileName == "" {
		return "", errors.Wrap(ErrValidation, "empty file name")
	}

	key := fmt.Sprintf("%s/%s-%s", prefix, s.now().UTC().Format("20060102T150405"), fileName)
	if err := s.PutBinary(ctx, key, body); err != nil {
		return "", err
	}
	if caption != "" {
		if err := s.PutBinary(ctx, key+".cap", []byte(caption)); err != nil {
			return "", err
		}
	}
	return key, nil
}
