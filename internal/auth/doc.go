// Package auth authenticates NMSP uploads.
//
// Firmware carries no credentials in headers. Instead each device talks to a
// per-user virtual host whose first DNS label is "<access-token>-<language>".
// [ParseHost] splits that label, [Client] exchanges the token for the account
// record at the auth service, and [Gate] applies subscription policy on top.
package auth
