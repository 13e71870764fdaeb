package mpt

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	//cacheHits prometheus metric.
	cacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of trie nodes found in the node cache",
			Name:      "node_cache_hits_total",
			Namespace: "ethtrie",
		},
	)
	//cacheMisses prometheus metric.
	cacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of trie nodes missing in the node cache",
			Name:      "node_cache_misses_total",
			Namespace: "ethtrie",
		},
	)
	//commits prometheus metric.
	commits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of successful trie commits",
			Name:      "commits_total",
			Namespace: "ethtrie",
		},
	)
	//committedNodes prometheus metric.
	committedNodes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of trie nodes written to the storage",
			Name:      "committed_nodes_total",
			Namespace: "ethtrie",
		},
	)
)

func init() {
	prometheus.MustRegister(
		cacheHits,
		cacheMisses,
		commits,
		committedNodes,
	)
}

func updateCommitMetrics(nodes int) {
	commits.Inc()
	committedNodes.Add(float64(nodes))
}
