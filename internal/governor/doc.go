// Package governor is the process-wide gate in front of every catalog call.
//
// A [Gate] paces requests with a token bucket and, when the remote service answers with a rate limit,
// holds every caller until the cooldown window passes. Cooldowns are classified by length: a short
// [LocalCooldown] is an ordinary throttle while a [Lock] means the credential itself was suspended.
package governor
