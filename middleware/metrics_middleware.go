package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	keyRoute  = tag.MustNewKey("route")
	keyMethod = tag.MustNewKey("method")
	keyStatus = tag.MustNewKey("status")

	requestCount   = stats.Int64("photohunter/requests", "Number of handled requests", stats.UnitDimensionless)
	requestLatency = stats.Float64("photohunter/latency", "Request handling time", stats.UnitMilliseconds)

	RequestCountView = &view.View{
		Name:        "photohunter/requests",
		Description: "Counter of requests that have been handled",
		TagKeys:     []tag.Key{keyRoute, keyMethod, keyStatus},
		Measure:     requestCount,
		Aggregation: view.Count(),
	}
	RequestLatencyView = &view.View{
		Name:        "photohunter/latency",
		Description: "Distribution of request handling time",
		TagKeys:     []tag.Key{keyRoute, keyMethod},
		Measure:     requestLatency,
		Aggregation: view.Distribution(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	}
)

func RegisterMetrics() error {
	return view.Register(RequestCountView, RequestLatencyView)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// routeName is the mux path template of the matched route, which keeps
// ids out of the tag values.
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// MetricsMiddleware records a request count and latency per route. It must
// run inside the router so the matched route is known.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		route := routeName(r)
		glog.V(1).Infof("Served %s %s route=%q status=%d in %v", r.Method, r.URL.Path, route, rec.status, elapsed)

		err := stats.RecordWithTags(r.Context(),
			[]tag.Mutator{
				tag.Upsert(keyRoute, route),
				tag.Upsert(keyMethod, r.Method),
				tag.Upsert(keyStatus, strconv.Itoa(rec.status)),
			},
			requestCount.M(1),
			requestLatency.M(float64(elapsed)/float64(time.Millisecond)),
		)
		if err != nil {
			glog.Warningf("Failed to record request metrics: %v", err)
		}
	})
}
