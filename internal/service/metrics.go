package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for addressOperations.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

var (
	addressOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "addressbook_operations_total",
			Help: "Total number of address book operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	defaultPromotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "addressbook_default_promotions_total",
			Help: "Total number of addresses promoted to default after the previous default went away",
		},
	)

	catalogCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_category_cache_lookups_total",
			Help: "Total number of category cache lookups by result",
		},
		[]string{"result"},
	)

	catalogSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_searches_total",
			Help: "Total number of catalog searches by the backend that answered",
		},
		[]string{"backend"},
	)
)
