package memdex

import "github.com/prometheus/client_golang/prometheus"

var IndexOpCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memdex",
	Subsystem: "index",
	Name:      "ops",
}, []string{"index", "op"})

var ConstraintViolationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memdex",
	Subsystem: "index",
	Name:      "constraint_violations",
}, []string{"index"})

var TxnFinishedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "memdex",
	Subsystem: "txn",
	Name:      "finished",
}, []string{"result"})
