package kms

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

type decryptAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Client decrypts KMS ciphertext blobs
type Client struct {
	api               decryptAPI
	encryptionContext map[string]string
}

// Option configures Client
type Option func(*Client)

// WithEncryptionContext sets the encryption context the ciphertext was bound
// to. Values encrypted with the Lambda console helpers carry
// {"LambdaFunctionName": <name>}.
func WithEncryptionContext(ec map[string]string) Option {
	return func(c *Client) {
		c.encryptionContext = ec
	}
}

// New creates a KMS client from an AWS config
func New(cfg aws.Config, opts ...Option) *Client {
	return newClient(kms.NewFromConfig(cfg), opts...)
}

func newClient(api decryptAPI, opts ...Option) *Client {
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Decrypt returns the plaintext of a ciphertext blob
func (c *Client) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, goerr.New("ciphertext is empty", goerr.T(types.ErrTagCredential))
	}

	input := &kms.DecryptInput{CiphertextBlob: ciphertext}
	if len(c.encryptionContext) > 0 {
		input.EncryptionContext = c.encryptionContext
	}

	out, err := c.api.Decrypt(ctx, input)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decrypt with KMS", goerr.T(types.ErrTagCredential))
	}
	return out.Plaintext, nil
}
