// Package translator implements the Translator (C3): pivot-aware
// two-hop translation on top of the raw AWS Translate client.
package translator

import (
	"context"

	"lingobridge/internal/aws"
	"lingobridge/internal/langreg"
	"lingobridge/internal/logging"
)

var log = logging.New("Translator")

// client is the subset of aws.TranslateService the Translator needs,
// narrowed to an interface so the pivot-hop routing can be unit tested
// without a live AWS Translate call.
type client interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// breaker is the subset of aws.CircuitBreaker the Translator needs.
type breaker interface {
	Execute(fn func() error) error
}

// Translator translates text between two MT language codes, hopping through
// the pivot language when neither endpoint is the pivot itself. Repeated
// upstream failures trip cb, after which calls fail fast without hitting
// the network until the cooldown elapses.
type Translator struct {
	svc client
	cb  breaker
}

// New wraps an AWS Translate client behind a dedicated circuit breaker.
func New(svc client) *Translator {
	return &Translator{
		svc: svc,
		cb:  aws.NewCircuitBreaker(aws.DefaultCircuitBreakerConfig("translate")),
	}
}

// Translate converts text from srcMt to dstMt. On any failure it falls back
// to the original text rather than retrying; the pipeline still delivers a
// caption even when translation is unavailable.
func (t *Translator) Translate(ctx context.Context, text, srcMt, dstMt string) string {
	if text == "" || srcMt == dstMt {
		return text
	}

	if srcMt == langreg.Pivot || dstMt == langreg.Pivot {
		out, err := t.call(ctx, text, srcMt, dstMt)
		if err != nil {
			log.Printf("%s->%s failed, falling back to original: %v", srcMt, dstMt, err)
			return text
		}
		return out
	}

	viaPivot, err := t.call(ctx, text, srcMt, langreg.Pivot)
	if err != nil {
		log.Printf("%s->%s (hop 1) failed, falling back to original: %v", srcMt, langreg.Pivot, err)
		return text
	}

	out, err := t.call(ctx, viaPivot, langreg.Pivot, dstMt)
	if err != nil {
		log.Printf("%s->%s (hop 2) failed, falling back to original: %v", langreg.Pivot, dstMt, err)
		return text
	}
	return out
}

// call routes a single Translate hop through the circuit breaker. Once the
// breaker trips, it returns aws.ErrCircuitOpen immediately instead of
// issuing another network call.
func (t *Translator) call(ctx context.Context, text, srcMt, dstMt string) (string, error) {
	var out string
	err := t.cb.Execute(func() error {
		var callErr error
		out, callErr = t.svc.Translate(ctx, text, srcMt, dstMt)
		return callErr
	})
	return out, err
}
