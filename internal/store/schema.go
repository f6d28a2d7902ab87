package store

import "fmt"

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced by instance name so several
// processors can share one Redis server.
//
// Key pattern: downlink:{instance_name}:{entity}
// Channel pattern: downlink:{instance_name}:{event_type}

// SnapshotKey returns the key of the latest status snapshot hash.
// Pattern: downlink:{instance_name}:snapshot
func SnapshotKey(instanceName string) string {
	return fmt.Sprintf("downlink:%s:snapshot", instanceName)
}

// ControlKey returns the key of the control state hash (config name, enabled).
// Pattern: downlink:{instance_name}:control
func ControlKey(instanceName string) string {
	return fmt.Sprintf("downlink:%s:control", instanceName)
}

// SnapshotEventsChannel returns the channel announcing each published snapshot.
// Pattern: downlink:{instance_name}:snapshot_events
func SnapshotEventsChannel(instanceName string) string {
	return fmt.Sprintf("downlink:%s:snapshot_events", instanceName)
}

// ClearRequestsChannel returns the channel carrying clear requests to the processor.
// Pattern: downlink:{instance_name}:clear_requests
func ClearRequestsChannel(instanceName string) string {
	return fmt.Sprintf("downlink:%s:clear_requests", instanceName)
}

// ControlRequestsChannel returns the channel carrying enable, disable and
// unload requests to the processor.
// Pattern: downlink:{instance_name}:control_requests
func ControlRequestsChannel(instanceName string) string {
	return fmt.Sprintf("downlink:%s:control_requests", instanceName)
}
