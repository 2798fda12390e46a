package cmd

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/issgate/pkg/secrets"
)

type fakeSecretsAPI struct {
	payload string
	err     error
}

func (f fakeSecretsAPI) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.payload)}, nil
}

func TestCredentialsHealthChecker(t *testing.T) {
	t.Run("healthy when credentials resolve", func(t *testing.T) {
		provider := secrets.NewWithClient(fakeSecretsAPI{
			payload: `{"username":"svc","password":"hunter2"}`,
		}, "iss-credentials", nil)

		checker := credentialsHealthChecker{provider: provider}
		assert.NoError(t, checker.CheckHealth(context.Background()))
	})

	t.Run("unhealthy when the secret is unusable", func(t *testing.T) {
		provider := secrets.NewWithClient(fakeSecretsAPI{
			payload: `{"unrelated":"value"}`,
		}, "iss-credentials", nil)

		checker := credentialsHealthChecker{provider: provider}
		require.Error(t, checker.CheckHealth(context.Background()))
	})
}
