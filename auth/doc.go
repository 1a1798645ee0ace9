// Package auth manages player accounts and the signed tokens that identify
// a player on the REST API and the realtime connection.
package auth
