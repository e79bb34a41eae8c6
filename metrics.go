package multivm

import (
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/openrollup/multivm/types"
)

// Memory gauges, one per subsystem size the engines report.
var (
	eventSinkSizeGauge      = metrics.NewRegisteredGauge("multivm/memory/eventsink/size", nil)
	eventSinkHistoryGauge   = metrics.NewRegisteredGauge("multivm/memory/eventsink/history", nil)
	memorySizeGauge         = metrics.NewRegisteredGauge("multivm/memory/bootloader/size", nil)
	memoryHistoryGauge      = metrics.NewRegisteredGauge("multivm/memory/bootloader/history", nil)
	decommitterSizeGauge    = metrics.NewRegisteredGauge("multivm/memory/decommitter/size", nil)
	decommitterHistoryGauge = metrics.NewRegisteredGauge("multivm/memory/decommitter/history", nil)
	storageSizeGauge        = metrics.NewRegisteredGauge("multivm/memory/storage/size", nil)
	storageHistoryGauge     = metrics.NewRegisteredGauge("multivm/memory/storage/history", nil)
	totalGauge              = metrics.NewRegisteredGauge("multivm/memory/total", nil)
)

// ReportMemoryMetrics publishes a memory-metrics record to the gauges.
func ReportMemoryMetrics(m types.MemoryMetrics) {
	eventSinkSizeGauge.Update(int64(m.EventSinkSize))
	eventSinkHistoryGauge.Update(int64(m.EventSinkHistory))
	memorySizeGauge.Update(int64(m.MemorySize))
	memoryHistoryGauge.Update(int64(m.MemoryHistory))
	decommitterSizeGauge.Update(int64(m.DecommitterSize))
	decommitterHistoryGauge.Update(int64(m.DecommitterHistory))
	storageSizeGauge.Update(int64(m.StorageOverlaySize))
	storageHistoryGauge.Update(int64(m.StorageOverlayHistory))
	totalGauge.Update(int64(m.Total()))
}
