package config

import (
	"time"

	"github.com/ab0utbla-k/awshealth2dynatrace/internal/env"
)

// Config holds the forwarder Lambda settings.
type Config struct {
	AWSRegion string

	DynatraceURL   string
	RequestTimeout time.Duration

	// APIToken is set when the token is passed in directly; otherwise it is
	// read from SecretID in SecretRegion.
	APIToken     string
	SecretID     string
	SecretRegion string

	// DryRun returns transformed events instead of sending them.
	DryRun bool

	FailureTopicARN  string
	MetricsNamespace string
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	region, err := env.GetRequired("AWS_REGION", env.ParseNonEmptyString)
	if err != nil {
		return nil, err
	}
	cfg.AWSRegion = region

	dtURL, err := env.GetRequired("DT_API_URL", env.ParseURL)
	if err != nil {
		return nil, err
	}
	cfg.DynatraceURL = dtURL

	cfg.RequestTimeout = env.Get("DT_REQUEST_TIMEOUT", 10*time.Second, env.ParseDuration)
	cfg.DryRun = env.IsSet("DONT_SEND_TO_DT")

	cfg.APIToken = env.Get("DT_API_TOKEN", "", env.ParseNonEmptyString)
	if cfg.APIToken == "" {
		secretID, err := env.GetRequired("AWS_SECRET_ID", env.ParseNonEmptyString)
		if err != nil {
			return nil, err
		}
		cfg.SecretID = secretID
		cfg.SecretRegion = env.Get("AWS_SECRET_REGION", region, env.ParseNonEmptyString)
	}

	cfg.FailureTopicARN = env.Get("FAILURE_TOPIC_ARN", "", env.ParseNonEmptyString)
	cfg.MetricsNamespace = env.Get("METRICS_NAMESPACE", "", env.ParseNonEmptyString)

	return cfg, nil
}
