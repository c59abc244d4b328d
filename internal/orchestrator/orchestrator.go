// Package orchestrator runs whole translation paths: resolve the path,
// validate every hop, then execute the hops in order.
package orchestrator

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/valpere/polytran/internal"
	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/executor"
	"github.com/valpere/polytran/internal/resolver"
	"github.com/valpere/polytran/internal/validator"
)

var tracer = otel.Tracer("github.com/valpere/polytran/internal/orchestrator")

// PathRequest is one multi-hop translation.
type PathRequest struct {
	Bundle  internal.ContentBundle
	Source  string
	Target  string
	Rules   []resolver.Rule
	Mapping map[string]string
}

// HopResult records one executed hop.
type HopResult struct {
	Hop       string        `json:"hop"`
	BackendID string        `json:"backend_id"`
	Fallback  bool          `json:"fallback,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// PathResult is the outcome of a path. Hops holds every hop attempted,
// including the failing one.
type PathResult struct {
	Success    bool                    `json:"success"`
	Path       resolver.Path           `json:"path"`
	Bundle     *internal.ContentBundle `json:"bundle,omitempty"`
	Hops       []HopResult             `json:"hops"`
	FailedHop  string                  `json:"failed_hop,omitempty"`
	Error      string                  `json:"error,omitempty"`
	ErrorKind  errs.Kind               `json:"error_kind,omitempty"`
	Validation *validator.PathReport   `json:"validation,omitempty"`
}

// StepRunner executes one hop.
type StepRunner interface {
	ExecuteStep(ctx context.Context, bundle internal.ContentBundle, source, target, backendID string, settings config.Settings) executor.StepResult
}

// PathExecutor composes the resolver, the validator and a StepRunner.
type PathExecutor struct {
	steps     StepRunner
	validator *validator.PathValidator
	checker   *validator.LanguageChecker
	log       *logrus.Entry
}

func NewPathExecutor(steps StepRunner, v *validator.PathValidator, log *logrus.Entry) *PathExecutor {
	return &PathExecutor{steps: steps, validator: v, log: log}
}

// WithLanguageCheck enables the post-hop output language check for
// settings that ask for it.
func (e *PathExecutor) WithLanguageCheck(c *validator.LanguageChecker) *PathExecutor {
	e.checker = c
	return e
}

// EffectiveMapping returns the backend for every hop of path. Hops without
// an entry fall back to the first non-empty entry of mapping in key order;
// the second result lists the hops that fell back.
func EffectiveMapping(path resolver.Path, mapping map[string]string) (map[string]string, []string) {
	fallback := ""
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if id := strings.TrimSpace(mapping[k]); id != "" {
			fallback = id
			break
		}
	}

	out := make(map[string]string, len(path))
	var fell []string
	for _, hop := range path.Hops() {
		key := resolver.HopKey(hop[0], hop[1])
		if id := strings.TrimSpace(mapping[key]); id != "" {
			out[key] = id
			continue
		}
		if fallback != "" {
			out[key] = fallback
			fell = append(fell, key)
		}
	}
	return out, fell
}

// Execute resolves, validates and runs req. Nothing runs when validation
// fails; the first failing hop aborts the path.
func (e *PathExecutor) Execute(ctx context.Context, req PathRequest, settings config.Settings) PathResult {
	source, target := resolver.Canonical(req.Source), resolver.Canonical(req.Target)
	if err := resolver.CheckPair(source, target); err != nil {
		return failed(nil, err)
	}

	path := resolver.Resolve(source, target, req.Rules)
	ctx, span := tracer.Start(ctx, "execute_path")
	defer span.End()
	span.SetAttributes(attribute.StringSlice("polytran.path", path))

	log := e.log.WithField("path", strings.Join(path, "->"))

	mapping, fell := EffectiveMapping(path, req.Mapping)
	fallback := make(map[string]bool, len(fell))
	for _, hop := range fell {
		fallback[hop] = true
		log.WithFields(logrus.Fields{
			"hop":        hop,
			"backend_id": mapping[hop],
		}).Warn("no backend mapped for hop, using fallback mapping")
	}

	report := e.validator.ValidatePath(ctx, path, mapping, settings)
	if !report.Valid {
		res := failed(path, report.Err())
		res.Validation = &report
		span.SetStatus(codes.Error, res.Error)
		log.WithField("hops", report.Hops()).Warn("path validation failed")
		return res
	}

	res := PathResult{Path: path}
	current := req.Bundle.Clone()
	for _, hop := range path.Hops() {
		key := resolver.HopKey(hop[0], hop[1])
		id := mapping[key]

		step := e.steps.ExecuteStep(ctx, current, hop[0], hop[1], id, settings)
		hr := HopResult{Hop: key, BackendID: id, Fallback: fallback[key], Success: step.Success, Error: step.Error, Duration: step.Duration}

		if step.Success && e.checker != nil && settings.VerifyOutputLanguage {
			if err := e.checker.CheckBundle(*step.Bundle, hop[1]); err != nil {
				scoped := errs.AtHop(err, key, id)
				step = executor.StepResult{BackendID: id, Error: scoped.Error(), ErrorKind: scoped.Kind}
				hr.Success, hr.Error = false, step.Error
			}
		}
		res.Hops = append(res.Hops, hr)

		if !step.Success {
			res.FailedHop = key
			res.Error = step.Error
			res.ErrorKind = step.ErrorKind
			span.SetStatus(codes.Error, res.Error)
			log.WithFields(logrus.Fields{"hop": key, "backend_id": id}).Error("path aborted")
			return res
		}
		current = *step.Bundle
	}

	res.Success = true
	res.Bundle = &current
	log.WithField("hops", len(res.Hops)).Info("path completed")
	return res
}

func failed(path resolver.Path, err error) PathResult {
	return PathResult{
		Path:      path,
		Error:     err.Error(),
		ErrorKind: errs.KindOf(err),
	}
}
