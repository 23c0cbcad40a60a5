package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "chat",
		Name:      "messages_sent_total",
		Help:      "User messages persisted.",
	})
	RepliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "chat",
		Name:      "replies_total",
		Help:      "Assistant reply tasks by outcome.",
	}, []string{"outcome"})
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aria",
		Subsystem: "documents",
		Name:      "uploads_total",
		Help:      "Uploaded files by outcome.",
	}, []string{"outcome"})
	OpenViews = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aria",
		Name:      "open_views",
		Help:      "Open views by kind.",
	}, []string{"kind"})
)

var registry = prometheus.NewRegistry()

func init() {
	registry.MustRegister(
		MessagesSent,
		RepliesTotal,
		UploadsTotal,
		OpenViews,
		prometheus.NewGoCollector(),
	)
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
