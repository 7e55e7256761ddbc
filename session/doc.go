// Package session owns the authenticated channel to one XML API endpoint.
//
// Ownership boundary:
// - login and logout exchanges
// - the session token and its propagation as a URL matrix parameter
// - transaction and fault logs
//
// Faults inside ordinary responses are observed and logged, never returned
// as errors. Faults during login are fatal.
package session
