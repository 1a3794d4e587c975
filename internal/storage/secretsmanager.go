package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsManagerAPI defines the Secrets Manager operations used by the
// secret resolver.
type SecretsManagerAPI interface {
	// GetSecretValue retrieves a secret value.
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretResolver reads API tokens from AWS Secrets Manager. Used by the
// Lambda deployment so tokens are not embedded in environment variables;
// tokens are static (no refresh flow on either CMS), so this is read-only.
type SecretResolver struct {
	// client is the Secrets Manager API client.
	client SecretsManagerAPI
}

// NewSecretResolver creates a new Secrets Manager-backed secret resolver.
func NewSecretResolver(client SecretsManagerAPI) (*SecretResolver, error) {
	if client == nil {
		return nil, errors.New("secrets manager client is required")
	}
	return &SecretResolver{client: client}, nil
}

// Resolve returns the secret string stored at the given ARN.
func (r *SecretResolver) Resolve(ctx context.Context, secretARN string) (string, error) {
	if secretARN == "" {
		return "", errors.New("secret ARN is required")
	}

	output, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("getting secret from Secrets Manager: %w", err)
	}

	if output.SecretString == nil {
		return "", errors.New("secret has no string value")
	}

	secret := strings.TrimSpace(*output.SecretString)
	if secret == "" {
		return "", errors.New("secret is empty")
	}

	return secret, nil
}
