package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"
)

// SecretsStore persists the credential pair as one Secrets Manager secret
// whose SecretString is the same JSON document the file backend writes.
type SecretsStore struct {
	api        secretsmanageriface.SecretsManagerAPI
	secretName string
}

// NewSecretsStore builds a store for the named secret using the default
// AWS credential chain (environment, shared config, instance role).
func NewSecretsStore(secretName string) (*SecretsStore, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("tokenstore: creating AWS session: %w", err)
	}

	return &SecretsStore{
		api:        secretsmanager.New(sess),
		secretName: secretName,
	}, nil
}

// NewSecretsStoreWithAPI builds a store with an injected Secrets Manager
// client. Tests use this to avoid real AWS calls.
func NewSecretsStoreWithAPI(api secretsmanageriface.SecretsManagerAPI, secretName string) *SecretsStore {
	return &SecretsStore{api: api, secretName: secretName}
}

// Load reads the secret. Returns (nil, nil) if the secret does not exist
// yet, mirroring the file backend's missing-file behavior.
func (s *SecretsStore) Load(ctx context.Context) (*Credential, error) {
	out, err := s.api.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretName),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == secretsmanager.ErrCodeResourceNotFoundException {
			return nil, nil //nolint:nilnil // sentinel for "not stored yet"
		}

		return nil, fmt.Errorf("tokenstore: reading secret %s: %w", s.secretName, err)
	}

	if out.SecretString == nil {
		return nil, fmt.Errorf("tokenstore: secret %s has no SecretString", s.secretName)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(*out.SecretString), &cred); err != nil {
		return nil, fmt.Errorf("tokenstore: decoding secret %s: %w", s.secretName, err)
	}

	return &cred, nil
}

// Save writes both tokens in a single PutSecretValue call so the pair can
// never be observed half-updated. Creates the secret on first save.
func (s *SecretsStore) Save(ctx context.Context, cred *Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("tokenstore: encoding credential: %w", err)
	}

	_, err = s.api.PutSecretValueWithContext(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(s.secretName),
		SecretString: aws.String(string(data)),
	})
	if err == nil {
		return nil
	}

	var aerr awserr.Error
	if !errors.As(err, &aerr) || aerr.Code() != secretsmanager.ErrCodeResourceNotFoundException {
		return fmt.Errorf("tokenstore: writing secret %s: %w", s.secretName, err)
	}

	// First run: the secret record does not exist yet.
	_, err = s.api.CreateSecretWithContext(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(s.secretName),
		SecretString: aws.String(string(data)),
	})
	if err != nil {
		return fmt.Errorf("tokenstore: creating secret %s: %w", s.secretName, err)
	}

	return nil
}
