package kms

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

type mockDecryptAPI struct {
	decryptFunc func(ctx context.Context, params *kms.DecryptInput) (*kms.DecryptOutput, error)
	calls       []*kms.DecryptInput
}

func (m *mockDecryptAPI) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	m.calls = append(m.calls, params)
	return m.decryptFunc(ctx, params)
}

func TestClient_Decrypt(t *testing.T) {
	ctx := context.Background()

	t.Run("returns plaintext", func(t *testing.T) {
		api := &mockDecryptAPI{
			decryptFunc: func(ctx context.Context, params *kms.DecryptInput) (*kms.DecryptOutput, error) {
				return &kms.DecryptOutput{Plaintext: []byte("s3cr3t")}, nil
			},
		}
		c := newClient(api)

		plain, err := c.Decrypt(ctx, []byte("blob"))
		gt.NoError(t, err)
		gt.Equal(t, string(plain), "s3cr3t")
		gt.A(t, api.calls).Length(1)
		gt.Equal(t, string(api.calls[0].CiphertextBlob), "blob")
		gt.Equal(t, len(api.calls[0].EncryptionContext), 0)
	})

	t.Run("passes encryption context", func(t *testing.T) {
		api := &mockDecryptAPI{
			decryptFunc: func(ctx context.Context, params *kms.DecryptInput) (*kms.DecryptOutput, error) {
				return &kms.DecryptOutput{Plaintext: []byte("x")}, nil
			},
		}
		c := newClient(api, WithEncryptionContext(map[string]string{"LambdaFunctionName": "builder"}))

		_, err := c.Decrypt(ctx, []byte("blob"))
		gt.NoError(t, err)
		gt.Equal(t, api.calls[0].EncryptionContext["LambdaFunctionName"], "builder")
	})

	t.Run("decrypt failure is a credential error", func(t *testing.T) {
		api := &mockDecryptAPI{
			decryptFunc: func(ctx context.Context, params *kms.DecryptInput) (*kms.DecryptOutput, error) {
				return nil, errors.New("AccessDeniedException")
			},
		}
		_, err := newClient(api).Decrypt(ctx, []byte("blob"))
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagCredential))
	})

	t.Run("empty ciphertext", func(t *testing.T) {
		api := &mockDecryptAPI{}
		_, err := newClient(api).Decrypt(ctx, nil)
		gt.Error(t, err)
		gt.A(t, api.calls).Length(0)
	})
}
