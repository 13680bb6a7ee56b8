// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage mirrors uploaded metadata documents into S3-compatible
// object storage. The mirror is a fallback read path for when the IPFS
// gateway is slow or unavailable. It wraps the AWS SDK v2 and is
// configured for path-style access (required by CEPH/Hetzner/MinIO).
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const keyPrefix = "metadata/"

// Archive stores metadata documents in a single bucket keyed by content hash.
type Archive struct {
	s3     *s3.Client
	bucket string
}

// New creates an S3 archive client with path-style addressing. Returns
// (nil, nil) if endpoint, bucket or credentials are empty, allowing the app
// to start without a mirror.
func New(endpoint, region, accessKey, secretKey, bucket string) (*Archive, error) {
	if endpoint == "" || bucket == "" || accessKey == "" || secretKey == "" {
		return nil, nil
	}
	if region == "" {
		region = "us-east-1"
	}

	client := s3.New(s3.Options{
		Region:                     region,
		BaseEndpoint:               aws.String(strings.TrimRight(endpoint, "/")),
		Credentials:                credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &Archive{s3: client, bucket: bucket}, nil
}

// Key returns the object key for a content hash.
func Key(hash string) string {
	return keyPrefix + hash + ".json"
}

// Put stores a document under its content hash.
func (a *Archive) Put(ctx context.Context, hash string, doc []byte) error {
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(Key(hash)),
		Body:          bytes.NewReader(doc),
		ContentLength: aws.Int64(int64(len(doc))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 upload %s/%s: %w", a.bucket, Key(hash), err)
	}
	return nil
}

// Get retrieves a document by content hash. Returns (nil, nil) when the
// object does not exist.
func (a *Archive) Get(ctx context.Context, hash string) ([]byte, error) {
	out, err := a.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(Key(hash)),
	})
	var missing *s3types.NoSuchKey
	if errors.As(err, &missing) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("s3 download %s/%s: %w", a.bucket, Key(hash), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read body %s/%s: %w", a.bucket, Key(hash), err)
	}
	return data, nil
}

// Bucket returns the configured bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}
