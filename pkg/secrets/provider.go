// Package secrets resolves and caches ISS service credentials from AWS
// Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

// SecretsAPI is the slice of the Secrets Manager client this package uses.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Config configures the credential provider.
type Config struct {
	// SecretName is the Secrets Manager secret ID holding the credential JSON.
	SecretName string

	// Region is the AWS region of the secret store.
	Region string

	// AccessKeyID and SecretAccessKey are optional explicit AWS credentials.
	// When empty the SDK's default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// Validate checks required configuration.
func (c Config) Validate() error {
	if c.SecretName == "" {
		return errors.New("secrets: SecretName is required")
	}
	return nil
}

// Provider fetches one named secret and caches the parsed Credentials for
// the process lifetime. The cache is an explicit owned field; the
// read-check-write sequence is guarded by a mutex, so concurrent refreshes
// collapse into at most one redundant fetch rather than racing.
type Provider struct {
	client     SecretsAPI
	secretName string
	logger     *zap.Logger

	mu     sync.Mutex
	cached *Credentials
}

// New creates a Provider backed by a real Secrets Manager client.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("secrets: load AWS config: %w", err)
	}

	return NewWithClient(secretsmanager.NewFromConfig(awsCfg), cfg.SecretName, logger), nil
}

// NewWithClient creates a Provider around an existing client, primarily for
// tests.
func NewWithClient(client SecretsAPI, secretName string, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		client:     client,
		secretName: secretName,
		logger:     logger,
	}
}

// GetCredentials returns the cached Credentials, fetching from the secret
// store on first use or when forceRefresh is set.
func (p *Provider) GetCredentials(ctx context.Context, forceRefresh bool) (Credentials, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && !forceRefresh {
		return *p.cached, nil
	}

	creds, err := p.fetch(ctx)
	if err != nil {
		return Credentials{}, err
	}

	p.cached = &creds
	return creds, nil
}

// Invalidate drops the cached credentials so the next call re-fetches.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *Provider) fetch(ctx context.Context) (Credentials, error) {
	p.logger.Info("retrieving ISS credentials from secret store",
		zap.String("secret", p.secretName))

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return Credentials{}, fmt.Errorf("%w: secret store error %s: %s",
				ErrAuthentication, apiErr.ErrorCode(), apiErr.ErrorMessage())
		}
		return Credentials{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("%w: secret %s has no string payload", ErrAuthentication, p.secretName)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(*out.SecretString), &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: invalid secret format: %v", ErrAuthentication, err)
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}

	switch {
	case creds.Username != "":
		p.logger.Info("retrieved ISS credentials", zap.String("user", creds.Username))
	case creds.ClientID != "":
		p.logger.Info("retrieved ISS OAuth2 credentials", zap.String("client_id", creds.ClientID))
	}
	return creds, nil
}
