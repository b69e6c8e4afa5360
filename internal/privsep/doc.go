// Package privsep splits credential checking across two processes.
//
// The supervisor (Authenticator) runs with the rest of the application and
// may drop root after Start. The worker is a re-exec of the same binary that
// keeps root, owns the authentication backend, and answers one request at a
// time over a pair of pipes:
//
//	supervisor --{"action":"authenticate",...}\n--> worker
//	supervisor <--{"result":true}\n---------------- worker
//
// Positive results are cached in the supervisor as salted SHA-512 hashes so
// repeated checks for the same user and password skip the round trip until
// the entry expires. Failures are never cached.
//
// Binaries using this package must call RunWorker from main before doing
// anything else when IsWorker reports true.
package privsep
