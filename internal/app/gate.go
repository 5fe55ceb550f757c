package app

import (
	"log/slog"

	"github.com/delifood/delifood/internal/authgate"
	"github.com/delifood/delifood/internal/token"
)

// Security bundles the token primitives a service needs.
type Security struct {
	Codec    *token.Codec
	Issuer   *token.Issuer
	Services *token.ServiceTokens
	Gate     *authgate.Gate
}

// NewSecurity derives the codec, issuer and gate from configuration.
// Service principals are enabled only when SERVICE_TOKEN_SECRET is set.
func NewSecurity(cfg *Config, logger *slog.Logger) (*Security, error) {
	codec, err := token.NewCodec(cfg.TokenSecret)
	if err != nil {
		return nil, err
	}
	sec := &Security{Codec: codec, Issuer: token.NewIssuer(codec, cfg.TokenTTL)}
	opts := []authgate.Option{authgate.WithCache(cfg.TokenCacheSize, cfg.TokenCacheTTL)}
	if cfg.ServiceTokenSecret != "" {
		sec.Services, err = token.NewServiceTokens(cfg.ServiceTokenSecret, cfg.ServiceTokenTTL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, authgate.WithServiceTokens(sec.Services))
	}
	sec.Gate = authgate.New(codec, logger, opts...)
	return sec, nil
}
