package links

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinks_links_created_total",
		Help: "Links minted or refreshed.",
	})
	linksEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinks_links_evicted_total",
		Help: "Links removed because their expiry passed.",
	})
	linksRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinks_links_removed_total",
		Help: "Links removed by an operator.",
	})
	linksArmedTimers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filelinks_expiry_timers",
		Help: "Expiry timers currently armed.",
	})
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filelinks_downloads_total",
		Help: "Download requests by outcome.",
	}, []string{"outcome"})
	downloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filelinks_download_bytes_total",
		Help: "Bytes written to download clients.",
	})
)

// Download outcomes.
const (
	outcomeComplete   = "complete"
	outcomeIncomplete = "incomplete"
	outcomeNotFound   = "not_found"
)
