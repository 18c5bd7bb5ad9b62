package aws

import (
	"context"
	"os"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/cockroachdb/errors"
)

// LoadAWSConfig resolves the SDK configuration for the given region.
// An empty region falls back to AWS_REGION and then to us-east-1.
func LoadAWSConfig(ctx context.Context, region string) (sdkaws.Config, error) {
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1" // default fallback
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return cfg, errors.Wrap(err, "failed to load AWS config")
	}

	return cfg, nil
}
