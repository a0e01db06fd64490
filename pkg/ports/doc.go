/*
Package ports defines the driven ports (interfaces) of the Lattice host.

These interfaces decouple the session from storage backends, so the same
host can keep preferences and tokens in memory, on disk or in Redis.

# Key Interfaces

  - PreferenceStore: persists preference values per plugin.
  - TokenStore: persists OAuth token sets per provider.
*/
package ports
