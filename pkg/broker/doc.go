// Package broker owns the interactive identity credential for the kubedeck
// desktop application: it persists the authentication record across process
// restarts, serializes concurrent token requests into a single lane, and
// decides when a silent acquisition may escalate to an interactive login.
package broker
