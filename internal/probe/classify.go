package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/HerbHall/sshcheck/pkg/models"
)

// Diagnostics for handshakes that prove the service is up without a login.
const (
	MsgAuthRequired   = "Authentication required (but SSH service is running)"
	MsgNoAuthMethods  = "SSH service running (no auth methods configured)"
	msgCancelled      = "Unexpected error: probe cancelled"
	msgTimeoutFormat  = "Connection timeout after %s"
	msgRefusedFormat  = "Connection refused on port %d"
	msgDNSPrefix      = "DNS resolution failed: "
	msgSSHPrefix      = "SSH error: "
	msgUnexpectedPref = "Unexpected error: "
)

// Outcome is the classified result of one probe attempt.
type Outcome struct {
	Status models.Status
	Detail string
}

type phase int

const (
	phaseDial phase = iota
	phaseHandshake
)

// classify maps an attempt error to an Outcome. Order matters: cancellation,
// timeout, DNS and refusal are recognized in either phase; authentication
// rejection and other protocol errors only once the handshake started.
func classify(ctx context.Context, err error, ph phase, cfg models.CheckConfig) Outcome {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.Canceled) {
		return Outcome{Status: models.StatusError, Detail: fmt.Sprintf("%s: %v", msgCancelled, ctxErr)}
	}

	switch {
	case isTimeout(err):
		return Outcome{Status: models.StatusTimeout, Detail: fmt.Sprintf(msgTimeoutFormat, cfg.Timeout)}
	case isDNS(err):
		return Outcome{Status: models.StatusFailed, Detail: msgDNSPrefix + err.Error()}
	case isRefused(err):
		return Outcome{Status: models.StatusFailed, Detail: fmt.Sprintf(msgRefusedFormat, cfg.Port)}
	}

	if ph == phaseHandshake {
		if isAuthRejected(err) {
			if cfg.HasCredentials() {
				return Outcome{Status: models.StatusConnected, Detail: MsgAuthRequired}
			}
			return Outcome{Status: models.StatusConnected, Detail: MsgNoAuthMethods}
		}
		return Outcome{Status: models.StatusFailed, Detail: msgSSHPrefix + err.Error()}
	}

	return Outcome{Status: models.StatusError, Detail: msgUnexpectedPref + err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	// x/crypto/ssh does not always wrap the transport error.
	return strings.Contains(err.Error(), "i/o timeout")
}

func isDNS(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused")
}

// isAuthRejected reports whether the server completed key exchange but no
// offered authentication method succeeded.
func isAuthRejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}
