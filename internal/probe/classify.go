package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Classify maps a transport error to a failure reason. TLS problems are
// checked before timeouts so a slow handshake that fails verification is
// still reported as a TLS error.
func Classify(err error) domain.FailureReason {
	if err == nil {
		return domain.ReasonNone
	}

	var (
		verifyErr *tls.CertificateVerificationError
		unknownCA x509.UnknownAuthorityError
		invalid   x509.CertificateInvalidError
		hostname  x509.HostnameError
		recordErr tls.RecordHeaderError
		alertErr  tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownCA),
		errors.As(err, &invalid),
		errors.As(err, &hostname),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr),
		strings.Contains(err.Error(), "tls: "):
		return domain.ReasonTLSError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.ReasonTimeout
	}

	var (
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	switch {
	case errors.As(err, &opErr),
		errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return domain.ReasonConnectionError
	}

	return domain.ReasonUnknown
}
