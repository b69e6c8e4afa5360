// Package hostfs provides access helpers for the host's account databases.
//
// All paths are resolved relative to a root, "/" by default. Running inside a
// container with the host filesystem bind-mounted elsewhere (e.g. /host) only
// needs SetRoot("/host").
//
//   etc/passwd   -> <root>/etc/passwd
//   etc/group    -> <root>/etc/group
//   etc/shadow   -> <root>/etc/shadow
//   etc/pam.d/*  -> <root>/etc/pam.d/*
package hostfs
