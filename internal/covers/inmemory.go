package covers

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// NewInMemory creates a cover store backed by an in-memory gofakes3 server
// on a local ephemeral port. Used with --no-s3. The returned shutdown
// function stops the server; stored objects do not survive a restart.
func NewInMemory(ctx context.Context, bucketName string) (*Store, func(), error) {
	backend := s3mem.New()
	faker := gofakes3.New(backend)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, nil, fmt.Errorf("covers: failed to listen for fake S3: %w", err)
	}
	server := &http.Server{Handler: faker.Server()}
	go server.Serve(listener)

	shutdown := func() { server.Close() }
	endpoint := "http://" + listener.Addr().String()

	sdkConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("fake-key", "fake-secret", ""),
		),
	)
	if err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("covers: failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true // Required for gofakes3
	})

	if _, err := s3Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	}); err != nil {
		shutdown()
		return nil, nil, fmt.Errorf("covers: failed to create fake bucket: %w", err)
	}

	return NewFromS3Client(s3Client, bucketName, endpoint+"/"+bucketName), shutdown, nil
}
