package errors

import (
	"github.com/certifi/gocertifi"
	"github.com/getsentry/sentry-go"
	"moff.io/frame-bridge/pkg/log"
	"os"
	"sync"
)

var (
	reportersMu sync.RWMutex
	reporters   []Reporter
)

func init() {
	if os.Getenv(debugMode) == "" {
		log.Debug("Env DEBUG not set, report errors enabled.")
	} else {
		log.Debug("Env DEBUG set, report errors disabled.")
	}
}

// Reporter 错误报告器
type Reporter interface {
	Report(error)
}

// ReporterFunc adapts a plain function to Reporter.
type ReporterFunc func(error)

func (f ReporterFunc) Report(err error) {
	f(err)
}

// RegisterReporter appends r to the reporters invoked by the *AndReport helpers.
func RegisterReporter(r Reporter) {
	if r == nil {
		return
	}
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = append(reporters, r)
}

// ResetReporters drops every registered reporter.
func ResetReporters() {
	reportersMu.Lock()
	defer reportersMu.Unlock()
	reporters = nil
}

func report(err error) {
	if err == nil {
		return
	}
	if os.Getenv(debugMode) != "" {
		return
	}
	reportersMu.RLock()
	rs := make([]Reporter, len(reporters))
	copy(rs, reporters)
	reportersMu.RUnlock()
	for _, r := range rs {
		r.Report(err)
	}
}

type sentryReporter struct {
	limiter *rateLimiter
}

func (s *sentryReporter) Report(err error) {
	stacks := callers().fullStack()
	if limited, _ := s.limiter.StackBasedRateLimited(reportOrigin(stacks)); limited {
		return
	}
	sentry.CaptureException(err)
}

// 设置该变量，则不会上报
const debugMode = "DEBUG"

// NewSentryReporter
// 初始化sentry错误报告器，DSN为空时跳过.
// 环境变量DEBUG不为空时，不会产生错误上报
func NewSentryReporter(sentryDSN, environment string) error {
	if sentryDSN == "" {
		log.Warn("empty DSN found, skipping sentry reporter initialization.")
		return nil
	}
	rootCAs, err := gocertifi.CACerts()
	if err != nil {
		return Wrap(err, "init sentry CA")
	}
	err = sentry.Init(sentry.ClientOptions{
		Dsn:         sentryDSN,
		Environment: environment,
		CaCerts:     rootCAs,
	})
	if err != nil {
		return Wrap(err, "init sentry")
	}
	RegisterReporter(&sentryReporter{limiter: newRateLimiter(sentrySilent)})
	log.Info("sentry error reporter initialized.")
	return nil
}

// reportOrigin picks the frame that called one of the *AndReport helpers.
func reportOrigin(stacks []string) string {
	const originDepth = 3
	if len(stacks) > originDepth {
		return stacks[originDepth]
	}
	if len(stacks) == 0 {
		return ""
	}
	return stacks[len(stacks)-1]
}
