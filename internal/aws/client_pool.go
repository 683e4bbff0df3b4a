package aws

import (
	"context"
	"fmt"
	"log"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "lingobridge/internal/config"
)

// ClientPool holds the shared Transcribe/Translate/Polly service clients so
// every connection's pipeline reuses one set of AWS SDK clients instead of
// constructing its own.
type ClientPool struct {
	Transcribe *TranscribeService
	Translate  *TranslateService
	Polly      *PollyService

	awsConfig awssdk.Config

	mu       sync.RWMutex
	closed   bool
	refCount int32
}

// NewClientPool loads AWS credentials once and wires the three services.
func NewClientPool(ctx context.Context, cfg *appconfig.Config) (*ClientPool, error) {
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.SecretAccessKey == "" {
		return nil, fmt.Errorf("AWS credentials are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.AWS.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	pool := &ClientPool{
		Transcribe: NewTranscribeService(awsCfg),
		Translate:  NewTranslateService(awsCfg),
		Polly:      NewPollyService(awsCfg),
		awsConfig:  awsCfg,
	}

	log.Printf("[ClientPool] Created shared AWS client pool (region=%s)", cfg.AWS.Region)
	return pool, nil
}

// Acquire marks one more pipeline as using this pool.
func (p *ClientPool) Acquire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.refCount++
}

// Release marks one pipeline as done using this pool.
func (p *ClientPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refCount--
}

// RefCount returns the number of pipelines currently sharing this pool.
func (p *ClientPool) RefCount() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refCount
}

// Close marks the pool closed. The underlying AWS SDK clients need no
// explicit teardown; this only prevents further acquisition bookkeeping.
func (p *ClientPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	log.Printf("[ClientPool] Closed (final refCount=%d)", p.refCount)
	return nil
}
