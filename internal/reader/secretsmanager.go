package reader

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/eugenenazirov/secretconf/internal/confload"
)

const sourceSecretsManager = "secretsmanager"

// Codes reported in confload.ReaderError for failures that carry no AWS
// error code of their own.
const (
	CodeClientInit            = "ClientInit"
	CodeInvalidRequest        = "InvalidRequest"
	CodeRequestFailed         = "RequestFailed"
	CodeCanceled              = "Canceled"
	CodeEmptySecret           = "EmptySecret"
	CodeInvalidSecretBinary   = "InvalidSecretBinary"
	CodeInvalidSecretEncoding = "InvalidSecretEncoding"
)

// SecretsManagerAPI is the part of the Secrets Manager client the reader uses.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads configuration text from a single AWS Secrets Manager
// secret. The secret is fetched on the first Read and cached for the lifetime
// of the reader.
type SecretsManager struct {
	client   SecretsManagerAPI
	input    secretsmanager.GetSecretValueInput
	logger   *zap.Logger
	throttle *Throttle

	mu     sync.Mutex
	cached *string
}

// NewSecretsManager builds a reader for the secret described by input
// (SecretId and optionally VersionId or VersionStage). Unless WithClient is
// given, the client is created from the default AWS configuration chain.
func NewSecretsManager(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...Option) (*SecretsManager, error) {
	o := newOptions(opts)

	if input == nil || aws.ToString(input.SecretId) == "" {
		err := &confload.ReaderError{Source: sourceSecretsManager, Code: CodeInvalidRequest, Err: errors.New("secret id is required")}
		o.logger.Error("invalid secrets manager request", zap.Error(err))
		return nil, err
	}

	client := o.client
	if client == nil {
		var err error
		client, err = newClient(ctx, o.region)
		if err != nil {
			o.logger.Error("failed to create secrets manager client",
				zap.String("region", o.region),
				zap.Error(err),
			)
			return nil, &confload.ReaderError{Source: sourceSecretsManager, Code: CodeClientInit, Err: err}
		}
	}

	return &SecretsManager{
		client:   client,
		input:    *input,
		logger:   o.logger,
		throttle: o.throttle,
	}, nil
}

func newClient(ctx context.Context, region string) (*secretsmanager.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if cfg.Region == "" {
		return nil, errors.New("no aws region configured")
	}

	return secretsmanager.NewFromConfig(cfg), nil
}

// Read returns the secret text. SecretString is returned verbatim.
// Otherwise SecretBinary is base64-decoded and must be valid UTF-8. The SDK
// has already removed the wire encoding from SecretBinary, so this decode
// only succeeds for secrets whose stored binary value is itself base64 text;
// any other binary secret fails with CodeInvalidSecretBinary.
func (r *SecretsManager) Read(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return *r.cached, nil
	}

	secretID := aws.ToString(r.input.SecretId)
	if err := r.throttle.Wait(ctx); err != nil {
		return "", r.fail(secretID, CodeCanceled, err)
	}

	input := r.input
	out, err := r.client.GetSecretValue(ctx, &input)
	if err != nil {
		return "", r.fail(secretID, errorCode(err), err)
	}

	text, code, err := secretText(out)
	if err != nil {
		return "", r.fail(secretID, code, err)
	}

	r.cached = &text
	r.logger.Debug("secret fetched", zap.String("secret_id", secretID))
	return text, nil
}

func (r *SecretsManager) fail(secretID, code string, err error) error {
	r.logger.Error("failed to read secret",
		zap.String("secret_id", secretID),
		zap.String("code", code),
		zap.Error(err),
	)
	return &confload.ReaderError{Source: sourceSecretsManager, Code: code, Err: err}
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCanceled
	}
	return CodeRequestFailed
}

func secretText(out *secretsmanager.GetSecretValueOutput) (string, string, error) {
	if out == nil {
		return "", CodeEmptySecret, errors.New("empty response")
	}
	if out.SecretString != nil {
		return *out.SecretString, "", nil
	}
	if out.SecretBinary == nil {
		return "", CodeEmptySecret, errors.New("secret has neither a string nor a binary value")
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(out.SecretBinary)))
	n, err := base64.StdEncoding.Decode(decoded, out.SecretBinary)
	if err != nil {
		return "", CodeInvalidSecretBinary, fmt.Errorf("decode secret binary: %w", err)
	}
	decoded = decoded[:n]
	if !utf8.Valid(decoded) {
		return "", CodeInvalidSecretEncoding, errors.New("secret binary is not valid UTF-8 text")
	}

	return string(decoded), "", nil
}
