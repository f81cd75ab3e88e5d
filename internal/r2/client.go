package r2

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"mime"
	"net/url"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Settings identifies the bucket exported documents are uploaded to.
type Settings struct {
	AccountID       string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string // e.g. https://pub-xxxxxxxx.r2.dev
	// Endpoint overrides https://<AccountID>.r2.cloudflarestorage.com.
	Endpoint string
}

// Complete reports whether every required setting is present.
func (s Settings) Complete() bool {
	return (s.AccountID != "" || s.Endpoint != "") && s.Bucket != "" &&
		s.AccessKeyID != "" && s.SecretAccessKey != "" && s.PublicURL != ""
}

// putter is the part of the S3 API the saver needs.
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Saver uploads exported quizzes to Cloudflare R2 and returns their public URL.
type Saver struct {
	s3        putter
	bucket    string
	publicURL *url.URL
	newID     func() uuid.UUID
}

// NewSaver builds a Saver. It returns (nil, nil) when settings are incomplete
// so callers can fall back to local saving.
func NewSaver(ctx context.Context, s Settings) (*Saver, error) {
	if !s.Complete() {
		log.Println("WARN: Cloudflare R2 settings not fully configured (CLOUDFLARE_ACCOUNT_ID, R2_BUCKET_NAME, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY, R2_PUBLIC_URL). R2 export disabled.")
		return nil, nil
	}

	public, err := url.Parse(s.PublicURL)
	if err != nil || public.Scheme == "" || public.Host == "" {
		return nil, fmt.Errorf("invalid R2 public base URL %q", s.PublicURL)
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.AccountID)
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Printf("INFO: R2 export enabled for bucket '%s'", s.Bucket)
	return newSaver(client, s.Bucket, public), nil
}

func newSaver(p putter, bucket string, public *url.URL) *Saver {
	return &Saver{s3: p, bucket: bucket, publicURL: public, newID: uuid.New}
}

// Save uploads data as exports/<id>/<name> and returns the public URL.
func (s *Saver) Save(ctx context.Context, name string, data []byte) (string, error) {
	if s == nil || s.s3 == nil {
		return "", fmt.Errorf("R2 saver not initialized")
	}
	name = path.Base(filepath.ToSlash(name))
	key := fmt.Sprintf("exports/%s/%s", s.newID().String(), name)

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           types.ObjectCannedACLPublicRead,
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to R2 (key: %s): %w", key, err)
	}

	u := *s.publicURL
	u.Path = path.Join(u.Path, key)
	log.Printf("INFO: Uploaded export to R2: %s", u.String())
	return u.String(), nil
}
