package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency      = metric.NewHistogram("1m1s")
	DiscoveryLatency     = metric.NewHistogram("10m10s")
	CtlSentPerSecond     = metric.NewCounter("10s1s")
	CtlRecvPerSecond     = metric.NewCounter("10s1s")
	CtlBytesPerSecond    = metric.NewCounter("10s1s")
	DataForwarded        = metric.NewCounter("10s1s")
	DiscoveriesStarted   = metric.NewCounter("1m1s")
	DiscoveriesSucceeded = metric.NewCounter("1m1s")
	DiscoveriesFailed    = metric.NewCounter("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("weft:CtlSent/s", CtlSentPerSecond)
	expvar.Publish("weft:CtlRecv/s", CtlRecvPerSecond)
	expvar.Publish("weft:CtlBytes/s", CtlBytesPerSecond)
	expvar.Publish("weft:DataForwarded/s", DataForwarded)
	expvar.Publish("weft:DiscoveriesStarted", DiscoveriesStarted)
	expvar.Publish("weft:DiscoveriesSucceeded", DiscoveriesSucceeded)
	expvar.Publish("weft:DiscoveriesFailed", DiscoveriesFailed)
	expvar.Publish("weft:DiscoveryLatency (ms)", DiscoveryLatency)
	expvar.Publish("weft:DispatchLatency (µs)", DispatchLatency)
}
