package probe

import (
	"context"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Runner performs one full probe cycle (all attempts) for a target.
// Implementations never fail: every outcome is a CheckResult.
type Runner interface {
	Run(ctx context.Context, target domain.TargetSpec) domain.CheckResult
}

// Diagnoser explains connection failures, e.g. by resolving the host.
type Diagnoser interface {
	Diagnose(ctx context.Context, host string) string
}
