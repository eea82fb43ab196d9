// Package token mints and verifies the HS256 identity tokens the bridge
// accepts in jwt auth mode. It is shared by the server and bridgectl.
package token
