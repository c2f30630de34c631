package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	MessagesReceived  atomic.Int64
	MessagesFailed    atomic.Int64
	DecodeErrors      atomic.Int64
	GPSDuplicates     atomic.Int64
	GPSProcessed      atomic.Int64
	FaultsPending     atomic.Int64
	FaultsAssembled   atomic.Int64
	SinkWriteSuccess  atomic.Int64
	SinkWriteFailures atomic.Int64
	SummariesFlushed  atomic.Int64
	IdlingEpisodes    atomic.Int64
	AlertQueueDrops   atomic.Int64
	AlertsSent        atomic.Int64
	AlertSendFailures atomic.Int64
	AlertsSuppressed  atomic.Int64
	NotifyQueueDrops  atomic.Int64
	NotificationsSent atomic.Int64
	NotifyFailures    atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "fleet_messages_received_total %d\n", MessagesReceived.Load())
	fmt.Fprintf(w, "fleet_messages_failed_total %d\n", MessagesFailed.Load())
	fmt.Fprintf(w, "fleet_decode_errors_total %d\n", DecodeErrors.Load())
	fmt.Fprintf(w, "fleet_gps_duplicates_total %d\n", GPSDuplicates.Load())
	fmt.Fprintf(w, "fleet_gps_processed_total %d\n", GPSProcessed.Load())
	fmt.Fprintf(w, "fleet_fault_fragments_pending_total %d\n", FaultsPending.Load())
	fmt.Fprintf(w, "fleet_faults_assembled_total %d\n", FaultsAssembled.Load())
	fmt.Fprintf(w, "fleet_sink_write_success_total %d\n", SinkWriteSuccess.Load())
	fmt.Fprintf(w, "fleet_sink_write_failures_total %d\n", SinkWriteFailures.Load())
	fmt.Fprintf(w, "fleet_summaries_flushed_total %d\n", SummariesFlushed.Load())
	fmt.Fprintf(w, "fleet_idling_episodes_total %d\n", IdlingEpisodes.Load())
	fmt.Fprintf(w, "fleet_alert_queue_drops_total %d\n", AlertQueueDrops.Load())
	fmt.Fprintf(w, "fleet_alerts_sent_total %d\n", AlertsSent.Load())
	fmt.Fprintf(w, "fleet_alert_send_failures_total %d\n", AlertSendFailures.Load())
	fmt.Fprintf(w, "fleet_alerts_suppressed_total %d\n", AlertsSuppressed.Load())
	fmt.Fprintf(w, "fleet_notify_queue_drops_total %d\n", NotifyQueueDrops.Load())
	fmt.Fprintf(w, "fleet_notifications_sent_total %d\n", NotificationsSent.Load())
	fmt.Fprintf(w, "fleet_notify_failures_total %d\n", NotifyFailures.Load())
}
