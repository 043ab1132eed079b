package resolver

import "time"

// ttlFromExpiry recomputes a cached entry's effective TTL as
// max(0, expires_at - now), per spec §4.4.1 step 3.
func ttlFromExpiry(now, expiresAt time.Time) uint32 {
	remaining := expiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	seconds := remaining / time.Second
	if seconds > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(seconds)
}
