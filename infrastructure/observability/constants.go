package observability

// Metric name prefixes
const (
	MetricPrefix = "casino"
)

// Metric names
const (
	LedgerEntriesTotal   = MetricPrefix + ".ledger.entries_total"
	RoundsResolvedTotal  = MetricPrefix + ".rounds.resolved_total"
	ActionsRejectedTotal = MetricPrefix + ".actions.rejected_total"
	TablesActive         = MetricPrefix + ".tables.active"
)

// Label keys
const (
	LabelKind = "kind"
	LabelGame = "game"
)
