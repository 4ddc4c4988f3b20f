// Package supabase is a minimal client for the two Supabase endpoints the
// health probes need: a PostgREST RPC that reports the database version and
// the GoTrue auth service.
//
// Client satisfies health.VersionSource and health.SessionSource:
//
//	client, err := supabase.New(supabase.ConfigFromLookup(secret.Environ()))
//	deps := &health.Deps{Store: client, Auth: client}
package supabase
