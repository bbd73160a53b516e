package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/utils"
)

// AllowOnlyCIDRS admits only clients whose IP matches one of allowed
// (single addresses or CIDRs). An empty list is a passthrough.
// trustProxy resolves the client from proxy headers, see utils.ClientIP.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("AllowOnlyCIDRS: empty matcher, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	log.Info("control API restricted to client networks",
		logger.Strings("allowed", allowed),
		logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("request rejected by network filter",
					logger.String("client_ip", ip),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
