package mqtt

// TopicSystemStatus carries the client's online/offline status, including
// the broker-published LWT on unexpected disconnect.
const TopicSystemStatus = "homesentry/system/status"

// IngestWildcard returns the multi-level subscription pattern for a Home
// Assistant topic tree, e.g. "homeassistant/#".
func IngestWildcard(prefix string) string {
	return prefix + "/#"
}
