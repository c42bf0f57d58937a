package gateflow

// Version is the library version reported by the CLI and server surfaces.
const Version = "0.1.0"
