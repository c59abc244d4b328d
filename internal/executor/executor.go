// Package executor runs one hop of a translation path on one backend:
// a raw provider, a managed assistant or a vendor-native assistant.
package executor

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/assistant"
	"github.com/valpere/polytran/internal/backend"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/managed"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/retry"
	"github.com/valpere/polytran/internal/translator"
)

var tracer = otel.Tracer("github.com/valpere/polytran/internal/executor")

// StepResult is the outcome of one hop. Bundle is set only on success.
type StepResult struct {
	Success   bool                    `json:"success"`
	Bundle    *internal.ContentBundle `json:"bundle,omitempty"`
	BackendID string                  `json:"backend_id"`
	Error     string                  `json:"error,omitempty"`
	ErrorKind errs.Kind               `json:"error_kind,omitempty"`
	Duration  time.Duration           `json:"duration"`

	err error
}

// Err returns the scoped error of a failed step.
func (r StepResult) Err() error {
	return r.err
}

// AssistantLookup finds managed assistants by numeric id.
type AssistantLookup interface {
	Get(ctx context.Context, id int) (*managed.Assistant, error)
}

// StepExecutor dispatches a hop on the kind of its backend id.
type StepExecutor struct {
	providers  *translator.Registry
	assistants AssistantLookup
	managed    *managed.Executor
	factory    *assistant.Factory
	log        *logrus.Entry
}

func New(providers *translator.Registry, assistants AssistantLookup, managedExec *managed.Executor, factory *assistant.Factory, log *logrus.Entry) *StepExecutor {
	return &StepExecutor{
		providers:  providers,
		assistants: assistants,
		managed:    managedExec,
		factory:    factory,
		log:        log,
	}
}

// ExecuteStep moves bundle from source to target on backendID. Failures are
// folded into the result; the input bundle is never modified.
func (e *StepExecutor) ExecuteStep(ctx context.Context, bundle internal.ContentBundle, source, target, backendID string, settings config.Settings) StepResult {
	hop := resolver.HopKey(source, target)
	ctx, span := tracer.Start(ctx, "execute_step")
	defer span.End()
	span.SetAttributes(
		attribute.String("polytran.hop", hop),
		attribute.String("polytran.backend_id", backendID),
	)

	log := e.log.WithFields(logrus.Fields{"hop": hop, "backend_id": backendID})
	start := time.Now()

	out, err := e.dispatch(ctx, bundle.Clone(), source, target, backendID, settings)
	res := StepResult{BackendID: backendID, Duration: time.Since(start)}
	if err != nil {
		scoped := errs.AtHop(err, hop, backendID)
		scoped.Op = "execute_step"
		res.err = scoped
		res.Error = scoped.Error()
		res.ErrorKind = scoped.Kind
		span.SetStatus(codes.Error, res.Error)
		log.WithField("error_kind", res.ErrorKind).Warnf("hop failed: %v", err)
		return res
	}

	res.Success = true
	res.Bundle = &out
	log.WithField("duration", res.Duration).Debug("hop completed")
	return res
}

func (e *StepExecutor) dispatch(ctx context.Context, b internal.ContentBundle, source, target, backendID string, settings config.Settings) (internal.ContentBundle, error) {
	ref, err := backend.Parse(backendID)
	if err != nil {
		return b, errs.Wrap(errs.KindRouting, err, "unrecognised backend id")
	}

	switch r := ref.(type) {
	case backend.ProviderRef:
		svc, err := e.providers.Get(r.ProviderID)
		if err != nil {
			return b, errs.Wrap(errs.KindConfiguration, err, "provider %q is not registered", r.ProviderID)
		}
		return translator.TranslateBundle(ctx, svc, settings.ServiceConfig(r.ProviderID), b, source, target)

	case backend.ManagedRef:
		a, err := e.assistants.Get(ctx, r.AssistantID)
		if err != nil {
			return b, errs.Wrap(errs.KindRouting, err, "managed assistant %d", r.AssistantID)
		}
		if !a.Active {
			return b, errs.Config("managed assistant %q is inactive", a.Name)
		}
		return e.managed.Translate(ctx, a, b, source, target, settings)

	case backend.VendorAssistantRef:
		client, err := e.factory.Create(r.AssistantID, settings)
		if err != nil {
			return b, err
		}
		vendorCfg, _ := settings.Vendor(client.Vendor())
		return retry.Do(ctx, retry.Policy{Timeout: vendorCfg.Timeout}, func(ctx context.Context) (internal.ContentBundle, error) {
			return client.ExecuteAssistant(ctx, r.AssistantID, b, source, target)
		})
	}
	return b, errs.New(errs.KindRouting, "unrecognised backend id %q", backendID)
}
