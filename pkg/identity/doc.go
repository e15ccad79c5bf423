// Package identity implements the broker's credential against an OIDC
// provider: interactive authentication via the authorization-code grant with
// PKCE (or the device-code grant on headless hosts), and silent acquisition
// backed by a refresh-token cache stored in a file or the OS keychain.
package identity
