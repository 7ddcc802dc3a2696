// Package secrets resolves the per-company eAK auth phrase.
//
// A company stores either the auth phrase itself or a reference of the form
// aws-sm://<secret-id>, which is read from AWS Secrets Manager through a
// client-side cache.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
	"github.com/garyjia/eak-connector/internal/application/port"
	"go.uber.org/zap"
)

// ReferencePrefix marks an auth value stored in AWS Secrets Manager
const ReferencePrefix = "aws-sm://"

var (
	// ErrEmptySecret is returned when the reference or the stored secret is blank
	ErrEmptySecret = errors.New("auth phrase is empty")
	// ErrReferencesDisabled is returned for aws-sm:// values when no secrets client is configured
	ErrReferencesDisabled = errors.New("secret references are not enabled")
)

// secretGetter is the part of secretcache.Cache the resolver uses
type secretGetter interface {
	GetSecretString(secretID string) (string, error)
}

// Resolver implements port.SecretResolver
type Resolver struct {
	cache  secretGetter
	logger *zap.Logger
}

// NewPlainResolver returns a resolver that only accepts literal auth phrases
func NewPlainResolver(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// NewAWSResolver returns a resolver backed by a cached Secrets Manager client
func NewAWSResolver(ctx context.Context, region string, ttl time.Duration, logger *zap.Logger) (*Resolver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awscfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awscfg)
	cache, err := secretcache.New(func(c *secretcache.Cache) {
		c.Client = client
		if ttl > 0 {
			c.CacheConfig.CacheItemTTL = ttl.Nanoseconds()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create secret cache: %w", err)
	}

	logger.Info("Secrets Manager resolver initialized", zap.String("region", awscfg.Region), zap.Duration("ttl", ttl))
	return &Resolver{cache: cache, logger: logger}, nil
}

// Resolve returns the auth phrase for ref
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrEmptySecret
	}
	if !strings.HasPrefix(ref, ReferencePrefix) {
		return ref, nil
	}

	secretID := strings.TrimPrefix(ref, ReferencePrefix)
	if secretID == "" {
		return "", ErrEmptySecret
	}
	if r.cache == nil {
		return "", fmt.Errorf("%w: %s", ErrReferencesDisabled, secretID)
	}

	value, err := r.cache.GetSecretString(secretID)
	if err != nil {
		r.logger.Error("Failed to read auth phrase from Secrets Manager", zap.String("secret_id", secretID), zap.Error(err))
		return "", fmt.Errorf("failed to read secret %s: %w", secretID, err)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: secret %s", ErrEmptySecret, secretID)
	}
	return value, nil
}

// Verify interface compliance
var _ port.SecretResolver = (*Resolver)(nil)
