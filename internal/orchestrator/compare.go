package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/valpere/polytran/internal/config"
	"github.com/valpere/polytran/internal/errs"
	"github.com/valpere/polytran/internal/retry"
	"github.com/valpere/polytran/internal/translator"
)

// Comparison is the outcome of sending one text to several providers.
type Comparison struct {
	Results   []translator.ServiceResult `json:"results"`
	Errors    map[string]string          `json:"errors,omitempty"`
	Succeeded int                        `json:"succeeded"`
	Failed    int                        `json:"failed"`
}

// Compare translates req with every named provider concurrently, each under
// its own timeout and single transport retry. Results are ordered by
// provider name.
func Compare(ctx context.Context, providers *translator.Registry, names []string, settings config.Settings, req translator.TranslateRequest) *Comparison {
	result := &Comparison{Errors: make(map[string]string)}

	type outcome struct {
		name string
		res  *translator.ServiceResult
		err  error
	}
	outcomes := make(chan outcome, len(names))

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()

			svc, err := providers.Get(name)
			if err != nil {
				outcomes <- outcome{name: name, err: err}
				return
			}
			cfg := settings.ServiceConfig(name)
			if !svc.IsConfigured(cfg) {
				outcomes <- outcome{name: name, err: errs.Config("provider %q is missing credentials", name)}
				return
			}

			start := time.Now()
			res, err := retry.Do(ctx, retry.Policy{Timeout: cfg.Timeout}, func(ctx context.Context) (*translator.ServiceResult, error) {
				return svc.Translate(ctx, cfg, req)
			})
			if res != nil && res.Latency == 0 {
				res.Latency = time.Since(start)
			}
			outcomes <- outcome{name: name, res: res, err: err}
		}(name)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for o := range outcomes {
		switch {
		case o.err != nil:
			result.Errors[o.name] = o.err.Error()
			result.Failed++
		case o.res.Error != "":
			result.Errors[o.name] = o.res.Error
			result.Failed++
		default:
			result.Results = append(result.Results, *o.res)
			result.Succeeded++
		}
	}

	sort.Slice(result.Results, func(i, j int) bool {
		return result.Results[i].ServiceName < result.Results[j].ServiceName
	})
	return result
}
