package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"storefront/internal/config"
	"storefront/internal/security"
)

var ErrNoCredential = errors.New("no catalog access token configured")

// ParameterAPI is the subset of the SSM client used to read the token.
type ParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ResolveCatalogToken returns the bearer token for the catalog API.
// Sources are tried in order: plain token, SSM SecureString parameter,
// sealed token. ps may be nil when no parameter is configured.
func ResolveCatalogToken(ctx context.Context, cfg config.CatalogConfig, ps ParameterAPI) (string, error) {
	if cfg.AccessToken != "" {
		return cfg.AccessToken, nil
	}

	if cfg.AccessTokenParam != "" {
		if ps == nil {
			return "", fmt.Errorf("read %s: no parameter store client", cfg.AccessTokenParam)
		}
		out, err := ps.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(cfg.AccessTokenParam),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return "", fmt.Errorf("read %s: %w", cfg.AccessTokenParam, err)
		}
		if out.Parameter == nil || strings.TrimSpace(aws.ToString(out.Parameter.Value)) == "" {
			return "", fmt.Errorf("read %s: %w", cfg.AccessTokenParam, ErrNoCredential)
		}
		return strings.TrimSpace(aws.ToString(out.Parameter.Value)), nil
	}

	if cfg.AccessTokenEnc != "" {
		key, err := security.ParseKey(cfg.TokenEncKeyB64)
		if err != nil {
			return "", fmt.Errorf("invalid CATALOG_TOKEN_ENC_KEY_B64: %w", err)
		}
		token, err := security.Open(key, cfg.AccessTokenEnc)
		if err != nil {
			return "", fmt.Errorf("decrypt catalog token: %w", err)
		}
		return token, nil
	}

	return "", ErrNoCredential
}
