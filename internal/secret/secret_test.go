package secret

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secretID = "dynatrace/api-token"

func newGetSecretValueInput() *secretsmanager.GetSecretValueInput {
	return &secretsmanager.GetSecretValueInput{SecretId: aws.String(secretID)}
}

func TestStatic(t *testing.T) {
	token, err := Static("dt0c01.token").Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dt0c01.token", token)
}

func TestSecretsManager_TokenIsCached(t *testing.T) {
	mockSM := new(SecretsManagerAPIMock)
	provider := NewSecretsManager(mockSM, secretID)

	mockSM.On("GetSecretValue",
		mock.Anything,
		newGetSecretValueInput(),
		mock.AnythingOfType("[]func(*secretsmanager.Options)"),
	).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"dtAPIToken": "dt0c01.token"}`),
	}, nil).Once()

	for range 3 {
		token, err := provider.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "dt0c01.token", token)
	}

	mockSM.AssertExpectations(t)
}

func TestSecretsManager_ErrorNotCached(t *testing.T) {
	mockSM := new(SecretsManagerAPIMock)
	provider := NewSecretsManager(mockSM, secretID)
	expectedError := errors.New("access denied")

	mockSM.On("GetSecretValue",
		mock.Anything,
		newGetSecretValueInput(),
		mock.AnythingOfType("[]func(*secretsmanager.Options)"),
	).Return((*secretsmanager.GetSecretValueOutput)(nil), expectedError).Once()

	mockSM.On("GetSecretValue",
		mock.Anything,
		newGetSecretValueInput(),
		mock.AnythingOfType("[]func(*secretsmanager.Options)"),
	).Return(&secretsmanager.GetSecretValueOutput{
		SecretString: aws.String(`{"dtAPIToken": "dt0c01.token"}`),
	}, nil).Once()

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, expectedError)
	assert.Contains(t, err.Error(), secretID)

	token, err := provider.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dt0c01.token", token)

	mockSM.AssertExpectations(t)
}

func TestSecretsManager_NoSecretString(t *testing.T) {
	mockSM := new(SecretsManagerAPIMock)
	provider := NewSecretsManager(mockSM, secretID)

	mockSM.On("GetSecretValue", mock.Anything, mock.Anything, mock.Anything).
		Return(&secretsmanager.GetSecretValueOutput{SecretBinary: []byte{0x1}}, nil).Once()

	_, err := provider.Token(context.Background())
	assert.ErrorIs(t, err, ErrSecretNotFound)
	mockSM.AssertExpectations(t)
}

func TestSecretsManager_MissingField(t *testing.T) {
	mockSM := new(SecretsManagerAPIMock)
	provider := NewSecretsManager(mockSM, secretID)

	mockSM.On("GetSecretValue", mock.Anything, mock.Anything, mock.Anything).
		Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`{"token": "x"}`)}, nil).Once()

	_, err := provider.Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenFieldMissing)
	mockSM.AssertExpectations(t)
}

func TestSecretsManager_InvalidJSON(t *testing.T) {
	mockSM := new(SecretsManagerAPIMock)
	provider := NewSecretsManager(mockSM, secretID)

	mockSM.On("GetSecretValue", mock.Anything, mock.Anything, mock.Anything).
		Return(&secretsmanager.GetSecretValueOutput{SecretString: aws.String(`dt0c01.token`)}, nil).Once()

	_, err := provider.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse secret")
	mockSM.AssertExpectations(t)
}
