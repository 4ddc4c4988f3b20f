// Package secret reads configuration values and resolves secret references
// inside them.
//
// It supports:
//   - Point-in-time environment snapshots (see Snapshot, Environ)
//   - Lenient and strict `${VAR}` expansion (see Expand, ExpandStrict)
//   - Resolving secret references through providers (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:file:/run/secrets/service_role_key
//   - Inline use:  Bearer secretref:env:SUPABASE_ANON_KEY
//
// The built-in providers are "env" and "file".
package secret
