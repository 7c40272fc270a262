package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

var rewardClaims = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "reward_claims_total",
		Help: "Reward claim attempts by kind and outcome",
	},
	[]string{"kind", "result"},
)

func init() {
	prometheus.MustRegister(rewardClaims)
}
