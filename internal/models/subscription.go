package models

import "strings"

// Subscribes reports whether the endpoint declared interest in eventType.
// Subscriptions are exact event types, "prefix.*" wildcards, or a bare "*".
// An empty subscription list matches nothing.
func (e *Endpoint) Subscribes(eventType string) bool {
	for _, sub := range e.SubscribedEvents {
		if sub == eventType || sub == "*" {
			return true
		}
		// wildcard matching: "inventory.*" matches "inventory.updated"
		if strings.HasSuffix(sub, ".*") {
			prefix := strings.TrimSuffix(sub, ".*")
			if strings.HasPrefix(eventType, prefix+".") {
				return true
			}
		}
	}
	return false
}
