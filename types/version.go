package types

// Version is the canonical project version.
// The CLI, the engine binary, and the frame protocol share this version; a
// host refuses to talk to an engine reporting a different major version.
const Version = "0.1.0"

// ProtocolVersion is the engine frame protocol version. Kept in lockstep with
// Version.
const ProtocolVersion = Version
