package probe

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.FailureReason
	}{
		{"nil", nil, domain.ReasonNone},
		{"deadline", &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded}, domain.ReasonTimeout},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, domain.ReasonTimeout},
		{"refused", &url.Error{Op: "Get", URL: "http://x", Err: &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}}, domain.ReasonConnectionError},
		{"dns", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, domain.ReasonConnectionError},
		{"eof", fmt.Errorf("read body: %w", io.ErrUnexpectedEOF), domain.ReasonConnectionError},
		{"unknown authority", &url.Error{Op: "Get", URL: "https://x", Err: x509.UnknownAuthorityError{}}, domain.ReasonTLSError},
		{"expired", x509.CertificateInvalidError{Reason: x509.Expired}, domain.ReasonTLSError},
		{"tls text", errors.New("remote error: tls: handshake failure"), domain.ReasonTLSError},
		{"other", errors.New("boom"), domain.ReasonUnknown},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Fatalf("%s: Classify(%v)=%q want %q", c.name, c.err, got, c.want)
		}
	}
}
