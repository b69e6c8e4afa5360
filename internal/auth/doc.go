// Package auth decides whether a username and password are valid on this
// host. It runs inside the privileged worker only.
//
// A Checker asks a backend (PAM lives in package pamauth, the shadow file
// backend lives here). GroupGate layers an optional required-group check on
// top of any Checker.
package auth
