package assets

import (
	"context"
	"errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Options configures the client used for remote manifests.
type S3Options struct {
	Region string

	// Endpoint overrides the S3 endpoint (MinIO, localstack). Path-style
	// addressing is used when set.
	Endpoint string

	// Static credentials. When empty the AWS_ACCESS_KEY_ID,
	// AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN variables are used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Client builds an S3 client from opts.
func NewS3Client(opts S3Options) *s3.Client {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return s3.New(s3.Options{
		Region:                     region,
		Credentials:                aws.NewCredentialsCache(staticCredentials(opts)),
		BaseEndpoint:               endpoint(opts.Endpoint),
		UsePathStyle:               opts.Endpoint != "",
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
}

func endpoint(ep string) *string {
	if ep == "" {
		return nil
	}
	return aws.String(ep)
}

func staticCredentials(opts S3Options) aws.CredentialsProvider {
	return aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
		id, secret, token := opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken
		if id == "" {
			id = os.Getenv("AWS_ACCESS_KEY_ID")
			secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
			token = os.Getenv("AWS_SESSION_TOKEN")
		}
		if id == "" || secret == "" {
			return aws.Credentials{}, errors.New("assets: no AWS credentials configured")
		}
		return aws.Credentials{
			AccessKeyID:     id,
			SecretAccessKey: secret,
			SessionToken:    token,
			Source:          "cvmaker",
		}, nil
	})
}
