// Package secret provides the Dynatrace API token.
package secret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/ab0utbla-k/awshealth2dynatrace/internal/secret")

var (
	// ErrSecretNotFound indicates the secret has no string value.
	ErrSecretNotFound = errors.New("secret has no string value")
	// ErrTokenFieldMissing indicates the secret JSON lacks the dtAPIToken field.
	ErrTokenFieldMissing = errors.New("secret does not contain dtAPIToken field")
)

// SecretsManagerAPI defines the Secrets Manager operations required to read the token.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Static returns a fixed token.
type Static string

// Token returns the token.
func (s Static) Token(context.Context) (string, error) {
	return string(s), nil
}

// SecretsManager reads the token from a Secrets Manager secret of the form
// {"dtAPIToken": "..."}. The token is fetched once per process.
type SecretsManager struct {
	client   SecretsManagerAPI
	secretID string

	mu    sync.Mutex
	token string
}

// NewSecretsManager creates a token provider for the given secret.
func NewSecretsManager(client SecretsManagerAPI, secretID string) *SecretsManager {
	return &SecretsManager{
		client:   client,
		secretID: secretID,
	}
}

// Token returns the cached token, fetching it on first use. Failed lookups are not cached.
func (s *SecretsManager) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	return token, nil
}

func (s *SecretsManager) fetch(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "secret.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("secret.id", s.secretID))

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return "", fmt.Errorf("cannot get secret %q: %w", s.secretID, err)
	}

	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q: %w", s.secretID, ErrSecretNotFound)
	}

	var value struct {
		Token string `json:"dtAPIToken"`
	}
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &value); err != nil {
		return "", fmt.Errorf("cannot parse secret %q: %w", s.secretID, err)
	}

	if value.Token == "" {
		return "", fmt.Errorf("secret %q: %w", s.secretID, ErrTokenFieldMissing)
	}

	return value.Token, nil
}
