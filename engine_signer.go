package goGuard

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuard/signer"
)

// SignPayload canonicalizes payload and returns a signed envelope.
func (e *Engine) SignPayload(ctx context.Context, payload any) (signer.Envelope, error) {
	if !e.ready() {
		return signer.Envelope{}, ErrEngineNotReady
	}
	if e.signer == nil {
		return signer.Envelope{}, ErrSecretRequired
	}
	env, err := e.signer.Sign(payload)
	if err != nil {
		return signer.Envelope{}, err
	}
	e.metricInc(MetricEnvelopeSigned)
	return env, nil
}

// VerifyEnvelope checks env and consumes its nonce on success. Every
// failure carries ErrEnvelopeRejected; the specific reason is only
// logged, counted and audited.
func (e *Engine) VerifyEnvelope(ctx context.Context, env signer.Envelope) signer.Result {
	if !e.ready() || e.signer == nil {
		return signer.Result{Err: ErrEnvelopeRejected, Reason: signer.ReasonUnavailable}
	}

	start := time.Now()
	res := e.signer.Verify(ctx, env)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))

	switch res.Reason {
	case signer.ReasonNone:
		e.metricInc(MetricEnvelopeAccepted)
		return res
	case signer.ReasonMalformed:
		e.metricInc(MetricEnvelopeMalformed)
	case signer.ReasonClockSkew:
		e.metricInc(MetricEnvelopeClockSkew)
	case signer.ReasonReplay:
		e.metricInc(MetricEnvelopeReplay)
	case signer.ReasonSignature:
		e.metricInc(MetricEnvelopeBadSignature)
	case signer.ReasonUnavailable:
		e.metricInc(MetricEnvelopeUnavailable)
		e.metricInc(MetricBackendUnavailable)
	}
	e.emitEnvelopeRejected(ctx, res)
	return res
}
