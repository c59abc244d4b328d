package jobs

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/valpere/polytran/internal/errs"
)

// Launcher starts the worker for a stored job record without waiting for it.
type Launcher interface {
	Name() string
	// Available is probed once when the dispatcher is built.
	Available() bool
	Launch(ctx context.Context, token string) error
}

// ProcessLauncher re-executes a binary as "<exe> <args...> --token <token>",
// detached from the caller with no pipes attached.
type ProcessLauncher struct {
	Executable string
	Args       []string
}

// NewProcessLauncher launches the running binary's worker subcommand.
func NewProcessLauncher(args ...string) *ProcessLauncher {
	exe, _ := os.Executable()
	return &ProcessLauncher{Executable: exe, Args: args}
}

func (l *ProcessLauncher) Name() string { return "process" }

func (l *ProcessLauncher) Available() bool {
	if l.Executable == "" {
		return false
	}
	_, err := exec.LookPath(l.Executable)
	return err == nil
}

func (l *ProcessLauncher) Launch(ctx context.Context, token string) error {
	args := append(append([]string{}, l.Args...), "--token", token)
	cmd := exec.Command(l.Executable, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker process: %w", err)
	}
	// reap the child so it never lingers as a zombie
	go cmd.Wait()
	return nil
}

// Loopback mechanism names, tried in this order.
const (
	MechanismFastHTTP = "fasthttp"
	MechanismNetHTTP  = "net_http"
	MechanismTCP      = "tcp"
)

// LoopbackLauncher asks this service's own HTTP endpoint to run the job:
// POST {base}/internal/jobs/{token}. Each mechanism gets Timeout; the first
// that delivers the request wins.
type LoopbackLauncher struct {
	BaseURL    string
	Timeout    time.Duration
	Mechanisms []string
}

func NewLoopbackLauncher(baseURL string, timeout time.Duration, disabled ...string) *LoopbackLauncher {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	off := make(map[string]bool, len(disabled))
	for _, d := range disabled {
		off[strings.ToLower(d)] = true
	}
	var mechs []string
	for _, m := range []string{MechanismFastHTTP, MechanismNetHTTP, MechanismTCP} {
		if !off[m] {
			mechs = append(mechs, m)
		}
	}
	return &LoopbackLauncher{BaseURL: strings.TrimRight(baseURL, "/"), Timeout: timeout, Mechanisms: mechs}
}

func (l *LoopbackLauncher) Name() string { return "loopback" }

func (l *LoopbackLauncher) Available() bool {
	u, err := url.Parse(l.BaseURL)
	return err == nil && u.Scheme == "http" && u.Host != "" && len(l.Mechanisms) > 0
}

func (l *LoopbackLauncher) endpoint(token string) string {
	return l.BaseURL + "/internal/jobs/" + url.PathEscape(token)
}

func (l *LoopbackLauncher) Launch(ctx context.Context, token string) error {
	var failures []string
	for _, m := range l.Mechanisms {
		var err error
		switch m {
		case MechanismFastHTTP:
			err = l.viaFastHTTP(token)
		case MechanismNetHTTP:
			err = l.viaNetHTTP(ctx, token)
		case MechanismTCP:
			err = l.viaTCP(token)
		default:
			err = fmt.Errorf("unknown mechanism")
		}
		if err == nil {
			return nil
		}
		failures = append(failures, m+": "+err.Error())
	}
	return errs.New(errs.KindTransport, "loopback launch failed: %s", strings.Join(failures, "; "))
}

func (l *LoopbackLauncher) viaFastHTTP(token string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(l.endpoint(token))
	req.Header.SetMethod(fasthttp.MethodPost)

	if err := fasthttp.DoTimeout(req, resp, l.Timeout); err != nil {
		return err
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return fmt.Errorf("status %d", code)
	}
	return nil
}

func (l *LoopbackLauncher) viaNetHTTP(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint(token), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// viaTCP writes a bare HTTP/1.1 request and hangs up once it is written.
func (l *LoopbackLauncher) viaTCP(token string) error {
	u, err := url.Parse(l.endpoint(token))
	if err != nil {
		return err
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}

	conn, err := net.DialTimeout("tcp", host, l.Timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(l.Timeout))

	w := bufio.NewWriter(conn)
	fmt.Fprintf(w, "POST %s HTTP/1.1\r\nHost: %s\r\nContent-Length: 0\r\nConnection: close\r\n\r\n", u.RequestURI(), u.Host)
	return w.Flush()
}
