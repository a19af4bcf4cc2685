package keystore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lukskeep/lukskeep/pkg/errors"
	"github.com/lukskeep/lukskeep/pkg/system"
)

// S3Store keeps GPG-encrypted credentials as armored objects in an S3 bucket.
// Encryption still happens locally through gpg; S3 only ever sees ciphertext.
type S3Store struct {
	client    *s3.Client
	bucket    string
	prefix    string
	recipient string
	run       system.Runner
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, bucket, region, prefix, recipient string, run system.Runner) (*S3Store, error) {
	slog.Info("keystore_init", "backend", "s3", "bucket", bucket, "region", region, "prefix", prefix)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &S3Store{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		prefix:    prefix,
		recipient: recipient,
		run:       run,
	}, nil
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, objectName(name, ".asc"))
}

func (s *S3Store) Exists(ctx context.Context, name string) (bool, error) {
	key := s.key(name)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			slog.Info("keystore_object_not_found", "key", key)
			return false, nil
		}
		slog.Error("keystore_head_object_failed", "key", key, "error", err)
		return false, errors.Wrap(err, "failed to check credential existence")
	}

	return true, nil
}

func (s *S3Store) Get(ctx context.Context, name string) (string, error) {
	key := s.key(name)
	slog.Info("keystore_decrypt", "name", name, "bucket", s.bucket, "key", key)

	obj, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		slog.Error("keystore_get_object_failed", "key", key, "error", err)
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}
	defer obj.Body.Close()

	armored, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}

	res, err := s.run.RunWithInput(ctx, string(armored), "gpg", "--quiet", "--batch", "--decrypt")
	if err != nil {
		return "", &errors.DecryptionError{Name: name, Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		slog.Error("keystore_decrypt_failed", "name", name, "exit_code", res.ExitCode)
		return "", &errors.DecryptionError{Name: name, Detail: res.Stderr}
	}

	return trimTrailingNewline(res.Stdout), nil
}

func (s *S3Store) Set(ctx context.Context, name, plaintext string) error {
	key := s.key(name)
	slog.Info("keystore_encrypt", "name", name, "bucket", s.bucket, "key", key, "recipient", s.recipient)

	res, err := s.run.RunWithInput(ctx, plaintext,
		"gpg", "--batch", "--yes", "--armor", "--encrypt", "--recipient", s.recipient)
	if err != nil {
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		slog.Error("keystore_encrypt_failed", "name", name, "exit_code", res.ExitCode)
		return &errors.EncryptionError{Name: name, Detail: res.Stderr}
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader([]byte(res.Stdout)),
	})
	if err != nil {
		slog.Error("keystore_put_object_failed", "key", key, "error", err)
		return &errors.EncryptionError{Name: name, Detail: err.Error()}
	}

	return nil
}
