package stock

import (
	"context"
	"time"
)

// RetryConfig limita os retries de persistência do coordenador.
type RetryConfig struct {
	Attempts int           // total de tentativas (mínimo 1)
	Base     time.Duration // espera inicial; dobra a cada tentativa
	Max      time.Duration // teto da espera entre tentativas
}

// DefaultRetryConfig valores usados quando a configuração não define nada.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 4, Base: 50 * time.Millisecond, Max: 2 * time.Second}
}

// withRetry executa fn com backoff exponencial limitado. Devolve o último
// erro após esgotar as tentativas; respeita cancelamento do contexto entre
// tentativas. O chamador decide o que fazer com o erro final (estacionar).
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	wait := cfg.Base
	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == cfg.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if cfg.Max > 0 && wait > cfg.Max {
			wait = cfg.Max
		}
	}
	return err
}
