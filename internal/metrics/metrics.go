package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	LoginTotal    *prometheus.CounterVec
	RefreshTotal  *prometheus.CounterVec
	ReuseDetected prometheus.Counter
	Registered    prometheus.Counter
)

// Register initializes and registers all auth metrics.
// If r == nil, prometheus.DefaultRegisterer is used.
func Register(r prometheus.Registerer) {
	once.Do(func() {
		if r == nil {
			r = prometheus.DefaultRegisterer
		}

		LoginTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduportal", Subsystem: "auth", Name: "login_total",
			Help: "Login attempts by outcome",
		}, []string{"result"})
		RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduportal", Subsystem: "auth", Name: "refresh_total",
			Help: "Refresh attempts by outcome",
		}, []string{"result"})
		ReuseDetected = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eduportal", Subsystem: "auth", Name: "refresh_reuse_detected_total",
			Help: "Refresh tokens presented after rotation",
		})
		Registered = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eduportal", Subsystem: "auth", Name: "registered_total",
			Help: "Accounts registered",
		})

		r.MustRegister(LoginTotal, RefreshTotal, ReuseDetected, Registered)
	})
}
