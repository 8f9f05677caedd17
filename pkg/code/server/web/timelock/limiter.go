package timelock

import (
	"net/http"

	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/code-timelock-server/pkg/netutil"
	"github.com/code-payments/code-timelock-server/pkg/rate"
)

// limiter limits calls that create state by client IP
type limiter struct {
	log *logrus.Entry
	ip  rate.Limiter
}

func newLimiter(ctor rate.LimiterCtor, ipLimit float64) *limiter {
	return &limiter{
		log: logrus.StandardLogger().WithField("type", "timelock/limiter"),
		ip:  ctor(ipLimit),
	}
}

// newLocalLimiter returns an in memory limiter. A non-positive limit disables
// limiting.
func newLocalLimiter(ipLimit float64) *limiter {
	return newLimiter(func(r float64) rate.Limiter {
		if r <= 0 {
			return &rate.NoLimiter{}
		}
		return rate.NewLocalRateLimiter(xrate.Limit(r))
	}, ipLimit)
}

func (l *limiter) allowRequest(r *http.Request) bool {
	ip := netutil.GetClientIP(r)
	if len(ip) == 0 {
		return true
	}

	log := l.log.WithFields(logrus.Fields{
		"method": "allowRequest",
		"ip":     ip,
	})

	allowed, err := l.ip.Allow(ip)
	if err != nil {
		log.WithError(err).Warn("failure checking ip rate limit")
		return true
	} else if !allowed {
		log.Trace("ip is rate limited")
		return false
	}
	return true
}
