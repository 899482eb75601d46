package storage

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Backend kinds accepted by NewBackend.
const (
	BackendFile   = "file"
	BackendDynamo = "dynamo"
)

// Options selects and configures a dataset backend.
type Options struct {
	Kind        string // "file" (default) or "dynamo"
	Dir         string // file backend: state directory
	DynamoTable string // dynamo backend: table name
}

// NewBackend builds the configured backend. The file backend is the default;
// the dynamo backend loads the ambient AWS config (region from AWS_REGION,
// falling back to us-east-1).
func NewBackend(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Kind {
	case "", BackendFile:
		if opts.Dir == "" {
			return nil, fmt.Errorf("file backend requires a state directory")
		}
		return NewFileBackend(opts.Dir), nil
	case BackendDynamo:
		if opts.DynamoTable == "" {
			return nil, fmt.Errorf("dynamo backend requires a table name")
		}
		region := os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return NewDynamoBackend(dyn.NewFromConfig(cfg), opts.DynamoTable), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", opts.Kind)
	}
}
