package policy

// ConfigStore keys. Per-app keys are namespaced as app.<id>.<field>.
const (
	CustomAppsKey = "apps.custom"

	fieldConfiguredInterval = "configured_interval_ms"
	fieldLastCloseTime      = "last_close_time_ms"
	fieldLastCloseInterval  = "last_close_interval_ms"
	fieldRevertedFor        = "reverted_for_close_ms"
	fieldRelaxedCount       = "relaxed_close_count"
	fieldRelaxedCountDate   = "relaxed_close_count_date"
	fieldRelaxedQuota       = "relaxed_quota"
)

func appKey(appID, field string) string {
	return "app." + appID + "." + field
}

// KeyConfiguredInterval is the selected tier in milliseconds.
func KeyConfiguredInterval(appID string) string { return appKey(appID, fieldConfiguredInterval) }

// KeyLastCloseTime is the Unix millisecond time of the last successful dismissal.
func KeyLastCloseTime(appID string) string { return appKey(appID, fieldLastCloseTime) }

// KeyLastCloseInterval is the tier actually used by the last dismissal, in milliseconds.
func KeyLastCloseInterval(appID string) string { return appKey(appID, fieldLastCloseInterval) }

// KeyRevertedFor records which close (by its time) already had relaxed mode reverted.
func KeyRevertedFor(appID string) string { return appKey(appID, fieldRevertedFor) }

func keyRelaxedCount(appID string) string     { return appKey(appID, fieldRelaxedCount) }
func keyRelaxedCountDate(appID string) string { return appKey(appID, fieldRelaxedCountDate) }
func keyRelaxedQuota(appID string) string     { return appKey(appID, fieldRelaxedQuota) }
