package inventory

// Classify derives the stock status and percentage for a material. The
// percentage is stock/threshold rounded half up. A zero threshold means the
// material never alerts and always classifies HEALTHY. Pure function, always
// computed from the latest record, never persisted.
func Classify(currentStockSheets, thresholdSheets int64) Classification {
	if thresholdSheets <= 0 {
		return Classification{Status: StockStatusHealthy, Percentage: 0}
	}
	pct := (currentStockSheets*100*2 + thresholdSheets) / (thresholdSheets * 2)
	switch {
	case pct <= 50:
		return Classification{Status: StockStatusCritical, Percentage: pct}
	case pct <= 100:
		return Classification{Status: StockStatusLow, Percentage: pct}
	default:
		return Classification{Status: StockStatusHealthy, Percentage: pct}
	}
}

// crossedInto reports whether an adjustment moved a material into a worse
// alert band. Only these transitions emit a LowStockCrossed event; reads and
// same-band adjustments stay silent.
func crossedInto(before, after Classification) bool {
	if before.Status == after.Status {
		return false
	}
	switch after.Status {
	case StockStatusCritical:
		return true
	case StockStatusLow:
		return before.Status == StockStatusHealthy
	}
	return false
}
