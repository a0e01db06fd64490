package lattice

// Version is the release of this module, reported by the CLI and the debug
// server.
var Version = "0.1.0"
