package dynamodb

import "github.com/rs/zerolog"

type dynamodbOption struct {
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	region          string
	sharedProfile   string
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler. Credentials are never logged.
func (o dynamodbOption) MarshalZerologObject(e *zerolog.Event) {
	e.Str("endpoint", o.endpoint).
		Str("region", o.region).
		Str("profile", o.sharedProfile).
		Bool("staticCredentials", o.accessKeyID != "")
}

// Option configures the DynamoDB client.
type Option func(*dynamodbOption)

func generateConfig(options []Option) dynamodbOption {
	var computed dynamodbOption
	for _, option := range options {
		option(&computed)
	}
	return computed
}

// Endpoint overrides the service endpoint, e.g. for DynamoDB Local.
func Endpoint(url string) Option {
	return func(o *dynamodbOption) {
		o.endpoint = url
	}
}

// AccessKeyID sets the static access key. It is only used together with SecretAccessKey.
func AccessKeyID(id string) Option {
	return func(o *dynamodbOption) {
		o.accessKeyID = id
	}
}

func SecretAccessKey(key string) Option {
	return func(o *dynamodbOption) {
		o.secretAccessKey = key
	}
}

func Region(region string) Option {
	return func(o *dynamodbOption) {
		o.region = region
	}
}

// SharedProfile selects a profile from the shared AWS configuration files.
func SharedProfile(profile string) Option {
	return func(o *dynamodbOption) {
		o.sharedProfile = profile
	}
}
