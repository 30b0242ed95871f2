package redis

// Key prefixes for primary entity storage.
const (
	prefixEntry    = "press:entry:"
	prefixRevision = "press:rev:"
	prefixEndpoint = "press:ep:"
	prefixDelivery = "press:dlv:"
	prefixDLQ      = "press:dlq:"
	prefixAudit    = "press:aud:"
)

// Key prefixes for sorted set indexes.
const (
	zEntrySpace     = "press:z:entry:space:" // + space ID, scored by created_at
	zEntryScheduled = "press:z:entry:scheduled"
	zEntryExpiring  = "press:z:entry:expiring"
	zRevisionEntry  = "press:z:rev:entry:"  // + space ID + ":" + entry ID
	zEndpointSpace  = "press:z:ep:space:"   // + space ID, "" for global
	sEndpointOn     = "press:s:ep:enabled:" // + space ID, "" for global
	zDeliveryEntry  = "press:z:dlv:entry:"  // + space ID + ":" + entry ID
	zDeliveryPend   = "press:z:dlv:pending" // scored by next attempt or lease expiry
	zDLQAll         = "press:z:dlq:all"
	zAuditSpace     = "press:z:aud:space:" // + space ID
)

// entityKey returns the primary key for an entity.
func entityKey(prefix, id string) string {
	return prefix + id
}

// scopedKey returns an index key for a record owned by an entry of a space.
func scopedKey(prefix, spaceID, entryID string) string {
	return prefix + spaceID + ":" + entryID
}

// enabledSetKey returns the set of enabled endpoint IDs owned by spaceID.
func enabledSetKey(spaceID string) string {
	return sEndpointOn + spaceID
}
