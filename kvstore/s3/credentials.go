package s3

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// anonymousCredentials is the credential provider cached when the profile
// lookup comes back NotFound: sign every request with empty keys, which the
// signer turns into an unsigned-looking but still well-formed request.
type anonymousCredentials struct{}

func (anonymousCredentials) Retrieve(context.Context) (aws.Credentials, error) {
	return aws.Credentials{}, nil
}

// newCredentialProvider resolves the named profile via the shared AWS config
// chain (environment, shared credentials file, container/IMDS role). A
// profile-not-found error is not propagated: it is treated as "sign
// anonymously", per the driver's lazy discovery rule.
func newCredentialProvider(ctx context.Context, cfg Config) (aws.CredentialsProvider, error) {
	profile := cfg.Profile
	if profile == "" {
		profile = "default"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithSharedConfigProfile(profile))
	if err != nil {
		if isProfileNotFound(err) {
			return anonymousCredentials{}, nil
		}
		return nil, err
	}
	if awsCfg.Credentials == nil {
		return anonymousCredentials{}, nil
	}
	return awsCfg.Credentials, nil
}

func isProfileNotFound(err error) bool {
	var notFound awsconfig.SharedConfigProfileNotExistError
	if errors.As(err, &notFound) {
		return true
	}
	return false
}
