// Package usermgr reads the host account databases (passwd, group, shadow)
// through hostfs and answers the questions authentication needs: does this
// group exist, which groups does this user belong to, what is the stored
// password hash.
//
// Parsing is tolerant: comments, blank lines and short lines are skipped,
// never treated as errors.
package usermgr
