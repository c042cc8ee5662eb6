package github_test

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/m-mizutani/gt"

	githubinfra "github.com/m-mizutani/playpack/pkg/infra/github"
)

func TestNewAppTokenSource_InvalidKey(t *testing.T) {
	_, err := githubinfra.NewAppTokenSource(1, 2, []byte("not a pem key"))
	gt.Error(t, err)
}

func TestAppTokenSource_Token_WithRealAPI(t *testing.T) {
	appID := os.Getenv("TEST_GITHUB_APP_ID")
	installationID := os.Getenv("TEST_GITHUB_INSTALLATION_ID")
	privateKey := os.Getenv("TEST_GITHUB_PRIVATE_KEY")

	if appID == "" || installationID == "" || privateKey == "" {
		t.Skip("Test GitHub App credentials not provided via environment variables")
	}

	appIDInt, err := strconv.ParseInt(appID, 10, 64)
	gt.NoError(t, err)

	installationIDInt, err := strconv.ParseInt(installationID, 10, 64)
	gt.NoError(t, err)

	src, err := githubinfra.NewAppTokenSource(appIDInt, installationIDInt, []byte(privateKey))
	gt.NoError(t, err).Required()

	token, err := src.Token(context.Background())
	gt.NoError(t, err)
	gt.Value(t, token).NotEqual("")
}
