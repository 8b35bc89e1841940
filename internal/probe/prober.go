// Package probe performs a single SSH reachability probe against one target
// and classifies the result.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/HerbHall/sshcheck/pkg/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

// anonymousUser is sent in the userauth request when no username is configured.
const anonymousUser = "sshcheck"

// DialFunc opens the transport connection for a probe.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Option configures a Prober.
type Option func(*Prober)

// WithDialer replaces the default TCP dialer. Used by tests and by callers
// that need to route probes through a custom network path.
func WithDialer(d DialFunc) Option {
	return func(p *Prober) { p.dial = d }
}

// Prober runs one SSH handshake attempt per call. It holds no per-probe
// state and is safe for concurrent use.
type Prober struct {
	dial   DialFunc
	logger *zap.Logger
}

// New creates a Prober.
func New(logger *zap.Logger, opts ...Option) *Prober {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Prober{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe connects to target on cfg.Port, performs the SSH handshake and
// returns the classified result. It never returns an error and never panics;
// every failure mode is folded into the CheckResult.
func (p *Prober) Probe(ctx context.Context, target string, cfg models.CheckConfig) (result models.CheckResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = models.CheckResult{
				Server:       target,
				Status:       models.StatusError,
				ResponseTime: time.Since(start),
				Measured:     true,
				Error:        fmt.Sprintf("Unexpected error: %v", r),
				CheckedAt:    time.Now().UTC(),
			}
			p.logger.Error("probe panicked", zap.String("target", target), zap.Any("panic", r))
		}
	}()

	outcome, elapsed := p.attempt(ctx, target, cfg, start)

	p.logger.Debug("probe complete",
		zap.String("target", target),
		zap.Int("port", cfg.Port),
		zap.String("status", string(outcome.Status)),
		zap.Duration("elapsed", elapsed),
		zap.String("detail", outcome.Detail),
	)

	return models.CheckResult{
		Server:       target,
		Status:       outcome.Status,
		ResponseTime: elapsed,
		Measured:     true,
		Error:        outcome.Detail,
		CheckedAt:    time.Now().UTC(),
	}
}

// attempt returns the outcome and the elapsed time measured when the outcome
// was determined. Deferred releases run after that measurement.
func (p *Prober) attempt(ctx context.Context, target string, cfg models.CheckConfig, start time.Time) (Outcome, time.Duration) {
	addr := net.JoinHostPort(target, strconv.Itoa(cfg.Port))

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := p.dialer(cfg.Timeout)(dialCtx, "tcp", addr)
	if err != nil {
		return classify(ctx, err, phaseDial, cfg), time.Since(start)
	}
	defer p.release(addr, conn)

	// The banner/handshake phase gets its own timeout window.
	_ = conn.SetDeadline(time.Now().Add(cfg.Timeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, p.clientConfig(addr, cfg))
	if err != nil {
		return classify(ctx, err, phaseHandshake, cfg), time.Since(start)
	}
	elapsed := time.Since(start)

	client := ssh.NewClient(sshConn, chans, reqs)
	p.release(addr, client)

	return Outcome{Status: models.StatusConnected}, elapsed
}

func (p *Prober) dialer(timeout time.Duration) DialFunc {
	if p.dial != nil {
		return p.dial
	}
	d := &net.Dialer{Timeout: timeout}
	return d.DialContext
}

// clientConfig builds the handshake settings. Without credentials no auth
// methods are offered beyond "none": no key files, no agent.
func (p *Prober) clientConfig(addr string, cfg models.CheckConfig) *ssh.ClientConfig {
	user := cfg.Username
	if user == "" {
		user = anonymousUser
	}

	c := &ssh.ClientConfig{
		User:            user,
		HostKeyCallback: p.recordHostKey(addr),
		Timeout:         cfg.Timeout,
	}
	if cfg.HasCredentials() {
		c.Auth = []ssh.AuthMethod{
			ssh.Password(cfg.Password),
			ssh.KeyboardInteractive(passwordChallenge(cfg.Password)),
		}
	}
	return c
}

// recordHostKey accepts any host key and logs its fingerprint.
func (p *Prober) recordHostKey(addr string) ssh.HostKeyCallback {
	return func(_ string, _ net.Addr, key ssh.PublicKey) error {
		p.logger.Debug("host key accepted",
			zap.String("addr", addr),
			zap.String("type", key.Type()),
			zap.String("fingerprint", ssh.FingerprintSHA256(key)),
		)
		return nil
	}
}

// release closes c and discards the error; the outcome is already decided.
func (p *Prober) release(addr string, c io.Closer) {
	if err := c.Close(); err != nil {
		p.logger.Debug("close after probe", zap.String("addr", addr), zap.Error(err))
	}
}

// passwordChallenge answers every keyboard-interactive prompt with the password.
func passwordChallenge(password string) ssh.KeyboardInteractiveChallenge {
	return func(_, _ string, questions []string, _ []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range answers {
			answers[i] = password
		}
		return answers, nil
	}
}
