package ratelimit

import "fmt"

// DispatchInflightKey names the SET of task ids the external queue's consumer
// is currently forwarding to the Worker Endpoint (§4.1, §5 "external queue
// enforces max concurrent dispatches").
func DispatchInflightKey(queue string) string {
	return fmt.Sprintf("imageforge:queue:%s:dispatch_inflight", queue)
}

// DispatchRateKey names the per-second counter bucket used to cap
// queue.max_dispatches_per_second.
func DispatchRateKey(queue string, second int64) string {
	return fmt.Sprintf("imageforge:queue:%s:dispatch_rate:%d", queue, second)
}
